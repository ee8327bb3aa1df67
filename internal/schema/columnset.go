package schema

import (
	"fmt"
	"strings"
)

// ColumnSet is an ordered set of columns whose names are unique. Names are
// compared case-insensitively, the way SQL identifiers are.
type ColumnSet struct {
	cols  []Column
	index map[string]int
}

// NewColumnSet builds a ColumnSet from cols, preserving their order. It fails
// on an empty or duplicate name.
func NewColumnSet(cols ...Column) (ColumnSet, error) {
	cs := ColumnSet{
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for _, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return ColumnSet{}, fmt.Errorf("column set: empty column name at position %d", len(cs.cols)+1)
		}
		key := foldName(name)
		if prev, dup := cs.index[key]; dup {
			return ColumnSet{}, fmt.Errorf("column set: duplicate column %q (also %q)", name, cs.cols[prev].Name)
		}
		c.Name = name
		cs.index[key] = len(cs.cols)
		cs.cols = append(cs.cols, c)
	}
	return cs, nil
}

// MustColumnSet is like NewColumnSet but panics on error. It is intended for
// tests and static definitions.
func MustColumnSet(cols ...Column) ColumnSet {
	cs, err := NewColumnSet(cols...)
	if err != nil {
		panic(err)
	}
	return cs
}

// Len returns the number of columns.
func (cs ColumnSet) Len() int { return len(cs.cols) }

// Columns returns a copy of the columns in order.
func (cs ColumnSet) Columns() []Column {
	out := make([]Column, len(cs.cols))
	copy(out, cs.cols)
	return out
}

// Names returns the column names in order.
func (cs ColumnSet) Names() []string {
	out := make([]string, len(cs.cols))
	for i, c := range cs.cols {
		out[i] = c.Name
	}
	return out
}

// Lookup finds a column by name.
func (cs ColumnSet) Lookup(name string) (Column, bool) {
	i, ok := cs.index[foldName(name)]
	if !ok {
		return Column{}, false
	}
	return cs.cols[i], true
}

// Has reports whether a column with the given name exists.
func (cs ColumnSet) Has(name string) bool {
	_, ok := cs.index[foldName(name)]
	return ok
}

// SameName reports whether two column names refer to the same column.
func SameName(a, b string) bool {
	return foldName(a) == foldName(b)
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
