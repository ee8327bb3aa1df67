package duckdb

import (
	"fmt"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/schema"
)

// Dialect is the DuckDB SQL dialect.
var Dialect adapter.Dialect = duckDialect{adapter.SQLDialect{
	DialectName: "DuckDB",
	Quote:       '"',
	Types: map[schema.DataType]string{
		schema.TypeText:      "VARCHAR",
		schema.TypeInteger:   "BIGINT",
		schema.TypeReal:      "DOUBLE",
		schema.TypeBoolean:   "BOOLEAN",
		schema.TypeDate:      "DATE",
		schema.TypeTimestamp: "TIMESTAMP",
	},
}}

type duckDialect struct {
	adapter.SQLDialect
}

func (d duckDialect) AlterColumnType(table string, col schema.Column, _ []schema.Column) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DATA TYPE %s",
		d.QuoteIdent(table), d.QuoteIdent(col.Name), d.TypeName(col.DataType))}
}
