package adapter

import (
	"fmt"
	"strings"

	"github.com/sadopc/chatsheet/internal/schema"
)

// Dialect renders the DDL a load needs in one database's flavour of SQL.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	TypeName(t schema.DataType) string
	ParseType(dbType string) schema.DataType

	CreateTable(table string, cols []schema.Column) string
	DropTable(table string) string
	AddColumn(table string, col schema.Column) string
	// AlterColumnType changes col's type to col.DataType. current holds
	// the table's columns before the change.
	AlterColumnType(table string, col schema.Column, current []schema.Column) []string
}

// SQLDialect implements the parts of Dialect shared by every supported
// database. Adapters embed it and add AlterColumnType.
type SQLDialect struct {
	DialectName string
	// Quote is the identifier quote character.
	Quote byte
	Types map[schema.DataType]string
}

func (d SQLDialect) Name() string { return d.DialectName }

// QuoteIdent quotes name, doubling any embedded quote characters.
func (d SQLDialect) QuoteIdent(name string) string {
	q := string(d.Quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// TypeName returns the column type used for t. Ambiguous columns are text.
func (d SQLDialect) TypeName(t schema.DataType) string {
	if name, ok := d.Types[t.Storable()]; ok {
		return name
	}
	return d.Types[schema.TypeText]
}

func (d SQLDialect) ParseType(dbType string) schema.DataType {
	return ParseTypeName(dbType)
}

func (d SQLDialect) CreateTable(table string, cols []schema.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = d.QuoteIdent(c.Name) + " " + d.TypeName(c.DataType)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteIdent(table), strings.Join(defs, ", "))
}

func (d SQLDialect) DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(table)
}

func (d SQLDialect) AddColumn(table string, col schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		d.QuoteIdent(table), d.QuoteIdent(col.Name), d.TypeName(col.DataType))
}

// ParseTypeName maps a declared database type onto a DataType. Unknown types
// are treated as text.
func ParseTypeName(dbType string) schema.DataType {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	switch {
	case t == "":
		return schema.TypeText
	case strings.HasPrefix(t, "BOOL"), t == "TINYINT(1)", t == "BIT":
		return schema.TypeBoolean
	case strings.Contains(t, "INTERVAL"):
		return schema.TypeText
	case strings.Contains(t, "TIMESTAMP"), strings.Contains(t, "DATETIME"):
		return schema.TypeTimestamp
	case t == "DATE":
		return schema.TypeDate
	case strings.Contains(t, "INT"), t == "SERIAL", t == "BIGSERIAL":
		return schema.TypeInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return schema.TypeReal
	}
	return schema.TypeText
}
