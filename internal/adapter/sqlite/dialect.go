package sqlite

import (
	"fmt"
	"strings"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/schema"
)

// Dialect is the SQLite SQL dialect.
var Dialect adapter.Dialect = sqliteDialect{adapter.SQLDialect{
	DialectName: "SQLite",
	Quote:       '"',
	Types: map[schema.DataType]string{
		schema.TypeText:      "TEXT",
		schema.TypeInteger:   "INTEGER",
		schema.TypeReal:      "REAL",
		schema.TypeBoolean:   "BOOLEAN",
		schema.TypeDate:      "DATE",
		schema.TypeTimestamp: "TIMESTAMP",
	},
}}

type sqliteDialect struct {
	adapter.SQLDialect
}

// rebuildSuffix names the temporary copy of a table being rebuilt.
const rebuildSuffix = "__chatsheet_old"

// AlterColumnType rebuilds the table, since SQLite cannot change a column's
// type in place. Only col's declared type changes: every column keeps its
// declared type, NOT NULL, default and primary key, and existing values of
// col are converted with CAST. Indexes, triggers, CHECK and foreign key
// constraints are not carried over.
func (d sqliteDialect) AlterColumnType(table string, col schema.Column, current []schema.Column) []string {
	old := table + rebuildSuffix

	var pk []string
	for _, c := range current {
		if c.IsPK {
			pk = append(pk, d.QuoteIdent(c.Name))
		}
	}

	defs := make([]string, 0, len(current)+1)
	names := make([]string, len(current))
	exprs := make([]string, len(current))
	for i, c := range current {
		names[i] = d.QuoteIdent(c.Name)
		exprs[i] = names[i]
		if schema.SameName(c.Name, col.Name) {
			c.Type = d.TypeName(col.DataType)
			exprs[i] = fmt.Sprintf("CAST(%s AS %s)", names[i], d.castType(col.DataType))
		}
		defs = append(defs, d.columnDef(c, c.IsPK && len(pk) == 1))
	}
	if len(pk) > 1 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}
	list := strings.Join(names, ", ")

	return []string{
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.QuoteIdent(table), d.QuoteIdent(old)),
		fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteIdent(table), strings.Join(defs, ", ")),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			d.QuoteIdent(table), list, strings.Join(exprs, ", "), d.QuoteIdent(old)),
		"DROP TABLE " + d.QuoteIdent(old),
	}
}

// columnDef declares c the way PRAGMA table_info reported it. An empty Type
// stays untyped.
func (d sqliteDialect) columnDef(c schema.Column, primaryKey bool) string {
	def := d.QuoteIdent(c.Name)
	if c.Type != "" {
		def += " " + c.Type
	}
	if primaryKey {
		def += " PRIMARY KEY"
	}
	if !c.Nullable {
		def += " NOT NULL"
	}
	if c.Default != "" {
		def += " DEFAULT (" + c.Default + ")"
	}
	return def
}

// castType maps t onto a storage class CAST understands.
func (d sqliteDialect) castType(t schema.DataType) string {
	switch t.Storable() {
	case schema.TypeInteger, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}
