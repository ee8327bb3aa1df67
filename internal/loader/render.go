package loader

import (
	"github.com/go-faster/errors"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/infer"
	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/schema"
)

// Render turns mutations into SQL for dialect d. current holds the table's
// columns before the first mutation; Render returns them as they stand after
// the last one.
func Render(d adapter.Dialect, table string, current []schema.Column, muts []reconcile.Mutation) ([]schema.Column, []string, error) {
	cols := append([]schema.Column(nil), current...)
	var stmts []string

	for _, m := range muts {
		switch m.Kind {
		case reconcile.DropTable:
			stmts = append(stmts, d.DropTable(table))
			cols = nil
		case reconcile.CreateTable:
			stmts = append(stmts, d.CreateTable(table, m.Columns))
			cols = append([]schema.Column(nil), m.Columns...)
		case reconcile.AddColumn:
			if indexOf(cols, m.Column) >= 0 {
				return nil, nil, errors.Errorf("add column %q: already exists", m.Column)
			}
			col := schema.Column{Name: m.Column, Type: d.TypeName(m.Type), DataType: m.Type, Nullable: true}
			stmts = append(stmts, d.AddColumn(table, col))
			cols = append(cols, col)
		case reconcile.ChangeType:
			i := indexOf(cols, m.Column)
			if i < 0 {
				return nil, nil, errors.Errorf("change type of %q: no such column", m.Column)
			}
			col := cols[i]
			col.DataType = m.Type
			col.Type = d.TypeName(m.Type)
			stmts = append(stmts, d.AlterColumnType(table, col, cols)...)
			cols[i] = col
		default:
			return nil, nil, errors.Errorf("unsupported mutation %s", m.Kind)
		}
	}
	return cols, stmts, nil
}

func indexOf(cols []schema.Column, name string) int {
	for i, c := range cols {
		if schema.SameName(c.Name, name) {
			return i
		}
	}
	return -1
}

// convertRows builds the insert column list and converts every raw value to
// the type of the table column receiving it.
func convertRows(tbl *infer.Table, targets map[string]string, final []schema.Column) ([]string, [][]any, error) {
	type source struct {
		index int
		typ   schema.DataType
	}

	var (
		cols    []string
		sources []source
	)
	for i, name := range tbl.Columns.Names() {
		target, ok := targets[name]
		if !ok {
			continue
		}
		j := indexOf(final, target)
		if j < 0 {
			return nil, nil, errors.Errorf("column %q: target %q missing from table", name, target)
		}
		cols = append(cols, final[j].Name)
		sources = append(sources, source{index: i, typ: final[j].DataType.Storable()})
	}
	if len(cols) == 0 {
		return nil, nil, nil
	}

	rows := make([][]any, len(tbl.Rows))
	for r, raw := range tbl.Rows {
		row := make([]any, len(sources))
		for k, s := range sources {
			v, err := infer.Convert(s.typ, raw[s.index])
			if err != nil {
				return nil, nil, errors.Wrapf(err, "row %d, column %q", r+1, cols[k])
			}
			row[k] = v
		}
		rows[r] = row
	}
	return cols, rows, nil
}
