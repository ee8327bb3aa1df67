package schema

import (
	"fmt"
	"strings"
)

// Table represents a database table.
type Table struct {
	Name    string
	Columns []Column
}

// Column represents a table column. Type holds the type as the database
// declares it; DataType is the abstract type used for comparisons.
type Column struct {
	Name     string
	Type     string
	DataType DataType
	Nullable bool
	Default  string
	IsPK     bool
}

// DataType is the portable column type shared by the CSV inferer and the
// database dialects.
type DataType int

const (
	TypeText DataType = iota
	TypeInteger
	TypeReal
	TypeBoolean
	TypeDate
	TypeTimestamp
	// TypeAmbiguous marks a column whose values fit no single type.
	TypeAmbiguous
)

var dataTypeNames = map[DataType]string{
	TypeText:      "TEXT",
	TypeInteger:   "INTEGER",
	TypeReal:      "REAL",
	TypeBoolean:   "BOOLEAN",
	TypeDate:      "DATE",
	TypeTimestamp: "TIMESTAMP",
	TypeAmbiguous: "AMBIGUOUS",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType parses a DataType name as printed by String. Matching is
// case-insensitive.
func ParseDataType(s string) (DataType, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range dataTypeNames {
		if name == want {
			return t, nil
		}
	}
	return TypeText, fmt.Errorf("unknown data type %q", s)
}

// CompatibleWith reports whether values of type t can be stored in a column
// of type existing without changing that column. Integers widen into reals
// and dates into timestamps; an ambiguous type is compatible with nothing.
func (t DataType) CompatibleWith(existing DataType) bool {
	if t == TypeAmbiguous || existing == TypeAmbiguous {
		return false
	}
	if t == existing {
		return true
	}
	switch {
	case t == TypeInteger && existing == TypeReal:
		return true
	case t == TypeDate && existing == TypeTimestamp:
		return true
	}
	return false
}

// Storable returns the type a column of type t is created with. Ambiguous
// columns are stored as text.
func (t DataType) Storable() DataType {
	if t == TypeAmbiguous {
		return TypeText
	}
	return t
}
