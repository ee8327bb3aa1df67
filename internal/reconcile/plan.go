package reconcile

import (
	"fmt"
	"strings"

	"github.com/sadopc/chatsheet/internal/schema"
)

// MutationKind identifies a schema change.
type MutationKind int

const (
	AddColumn MutationKind = iota
	ChangeType
	CreateTable
	DropTable
)

func (k MutationKind) String() string {
	switch k {
	case AddColumn:
		return "AddColumn"
	case ChangeType:
		return "ChangeType"
	case CreateTable:
		return "CreateTable"
	case DropTable:
		return "DropTable"
	default:
		return "Unknown"
	}
}

// Mutation is one step of a schema plan. Column and Type are set for
// AddColumn and ChangeType, From only for ChangeType, Columns only for
// CreateTable.
type Mutation struct {
	Kind    MutationKind
	Column  string
	Type    schema.DataType
	From    schema.DataType
	Columns []schema.Column
}

func (m Mutation) String() string {
	switch m.Kind {
	case AddColumn:
		return fmt.Sprintf("AddColumn(%s, %s)", m.Column, m.Type)
	case ChangeType:
		return fmt.Sprintf("ChangeType(%s, %s -> %s)", m.Column, m.From, m.Type)
	case CreateTable:
		parts := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			parts[i] = c.Name + " " + c.DataType.String()
		}
		return fmt.Sprintf("CreateTable(%s)", strings.Join(parts, ", "))
	case DropTable:
		return "DropTable()"
	}
	return m.Kind.String()
}

// CreatePlan creates a table holding every incoming column.
func CreatePlan(incoming schema.ColumnSet) []Mutation {
	return []Mutation{{Kind: CreateTable, Columns: incomingColumns(incoming)}}
}

// ReplacePlan drops the existing table and recreates it from the incoming
// columns.
func ReplacePlan(incoming schema.ColumnSet) []Mutation {
	return append([]Mutation{{Kind: DropTable}}, CreatePlan(incoming)...)
}

// IdentityTargets maps every incoming column to itself, for tables created
// from the incoming set.
func IdentityTargets(incoming schema.ColumnSet) map[string]string {
	out := make(map[string]string, incoming.Len())
	for _, name := range incoming.Names() {
		out[name] = name
	}
	return out
}

// incomingColumns returns the columns with storable types.
func incomingColumns(cs schema.ColumnSet) []schema.Column {
	cols := cs.Columns()
	for i := range cols {
		cols[i].DataType = cols[i].DataType.Storable()
	}
	return cols
}
