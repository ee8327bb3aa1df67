package schema

import "testing"

func TestCompatibleWith(t *testing.T) {
	tests := []struct {
		name     string
		incoming DataType
		existing DataType
		want     bool
	}{
		{"same text", TypeText, TypeText, true},
		{"same integer", TypeInteger, TypeInteger, true},
		{"integer widens to real", TypeInteger, TypeReal, true},
		{"real does not narrow", TypeReal, TypeInteger, false},
		{"date widens to timestamp", TypeDate, TypeTimestamp, true},
		{"timestamp does not narrow", TypeTimestamp, TypeDate, false},
		{"integer into text", TypeInteger, TypeText, false},
		{"text into integer", TypeText, TypeInteger, false},
		{"ambiguous into text", TypeAmbiguous, TypeText, false},
		{"ambiguous into ambiguous", TypeAmbiguous, TypeAmbiguous, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.incoming.CompatibleWith(tt.existing); got != tt.want {
				t.Errorf("%v.CompatibleWith(%v) = %v, want %v", tt.incoming, tt.existing, got, tt.want)
			}
		})
	}
}

func TestParseDataType(t *testing.T) {
	for _, dt := range []DataType{TypeText, TypeInteger, TypeReal, TypeBoolean, TypeDate, TypeTimestamp, TypeAmbiguous} {
		got, err := ParseDataType(dt.String())
		if err != nil {
			t.Fatalf("ParseDataType(%q) error: %v", dt.String(), err)
		}
		if got != dt {
			t.Errorf("ParseDataType(%q) = %v, want %v", dt.String(), got, dt)
		}
	}
	if got, err := ParseDataType(" integer "); err != nil || got != TypeInteger {
		t.Errorf("ParseDataType(\" integer \") = %v, %v", got, err)
	}
	if _, err := ParseDataType("blob"); err == nil {
		t.Error("ParseDataType(\"blob\") should fail")
	}
}

func TestStorable(t *testing.T) {
	if got := TypeAmbiguous.Storable(); got != TypeText {
		t.Errorf("TypeAmbiguous.Storable() = %v, want TEXT", got)
	}
	if got := TypeReal.Storable(); got != TypeReal {
		t.Errorf("TypeReal.Storable() = %v, want REAL", got)
	}
}

func TestNewColumnSet(t *testing.T) {
	cs, err := NewColumnSet(
		Column{Name: "id", DataType: TypeInteger},
		Column{Name: " Name ", DataType: TypeText},
	)
	if err != nil {
		t.Fatalf("NewColumnSet error: %v", err)
	}
	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cs.Len())
	}
	names := cs.Names()
	if names[0] != "id" || names[1] != "Name" {
		t.Errorf("Names() = %v, want [id Name]", names)
	}
	col, ok := cs.Lookup("NAME")
	if !ok {
		t.Fatal("Lookup(NAME) not found")
	}
	if col.DataType != TypeText {
		t.Errorf("Lookup(NAME).DataType = %v, want TEXT", col.DataType)
	}
	if cs.Has("email") {
		t.Error("Has(email) = true, want false")
	}
}

func TestNewColumnSet_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cols []Column
	}{
		{"duplicate", []Column{{Name: "id"}, {Name: "id"}}},
		{"duplicate differing case", []Column{{Name: "Email"}, {Name: "email"}}},
		{"empty name", []Column{{Name: "id"}, {Name: "  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewColumnSet(tt.cols...); err == nil {
				t.Error("NewColumnSet should fail")
			}
		})
	}
}

func TestColumnsReturnsCopy(t *testing.T) {
	cs := MustColumnSet(Column{Name: "a"})
	cols := cs.Columns()
	cols[0].Name = "changed"
	if cs.Names()[0] != "a" {
		t.Error("mutating Columns() result changed the set")
	}
}
