package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/sadopc/chatsheet/internal/schema"
)

// mockAdapter is a minimal adapter for testing the registry.
type mockAdapter struct {
	name string
	port int
}

func (m *mockAdapter) Name() string     { return m.name }
func (m *mockAdapter) DefaultPort() int { return m.port }
func (m *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	return nil, errors.New("mock: not implemented")
}

func TestRegister(t *testing.T) {
	// Save and restore original registry state.
	orig := make(map[string]Adapter)
	for k, v := range Registry {
		orig[k] = v
	}
	defer func() {
		Registry = orig
	}()

	Registry = map[string]Adapter{}

	for _, a := range []struct {
		name string
		port int
	}{
		{"alpha", 1111},
		{"bravo", 2222},
	} {
		Register(&mockAdapter{name: a.name, port: a.port})
	}

	if len(Registry) != 2 {
		t.Fatalf("expected 2 adapters in registry, got %d", len(Registry))
	}
	got, ok := Registry["bravo"]
	if !ok {
		t.Fatal("expected adapter 'bravo' to be registered")
	}
	if got.DefaultPort() != 2222 {
		t.Errorf("DefaultPort() = %d, want %d", got.DefaultPort(), 2222)
	}
}

func TestIsSelect(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM t", true},
		{"  select 1", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"PRAGMA table_info(t)", true},
		{"-- top rows\nSELECT 1", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET a = 1", false},
		{"DROP TABLE t", false},
		{"-- only a comment", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := IsSelect(tt.query); got != tt.want {
				t.Errorf("IsSelect(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestParseTypeName(t *testing.T) {
	tests := []struct {
		dbType string
		want   schema.DataType
	}{
		{"INTEGER", schema.TypeInteger},
		{"bigint", schema.TypeInteger},
		{"int4", schema.TypeInteger},
		{"REAL", schema.TypeReal},
		{"double precision", schema.TypeReal},
		{"DECIMAL(10,2)", schema.TypeReal},
		{"boolean", schema.TypeBoolean},
		{"tinyint(1)", schema.TypeBoolean},
		{"DATE", schema.TypeDate},
		{"timestamp without time zone", schema.TypeTimestamp},
		{"DATETIME", schema.TypeTimestamp},
		{"interval", schema.TypeText},
		{"varchar(255)", schema.TypeText},
		{"", schema.TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			if got := ParseTypeName(tt.dbType); got != tt.want {
				t.Errorf("ParseTypeName(%q) = %v, want %v", tt.dbType, got, tt.want)
			}
		})
	}
}

func TestSQLDialect(t *testing.T) {
	d := SQLDialect{
		DialectName: "test",
		Quote:       '"',
		Types: map[schema.DataType]string{
			schema.TypeText:    "TEXT",
			schema.TypeInteger: "BIGINT",
		},
	}

	if got := d.QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdent = %s", got)
	}
	if got := d.TypeName(schema.TypeAmbiguous); got != "TEXT" {
		t.Errorf("TypeName(AMBIGUOUS) = %s, want TEXT", got)
	}
	if got := d.TypeName(schema.TypeDate); got != "TEXT" {
		t.Errorf("TypeName of unmapped type = %s, want TEXT", got)
	}

	cols := []schema.Column{
		{Name: "id", DataType: schema.TypeInteger},
		{Name: "name", DataType: schema.TypeText},
	}
	want := `CREATE TABLE "people" ("id" BIGINT, "name" TEXT)`
	if got := d.CreateTable("people", cols); got != want {
		t.Errorf("CreateTable = %s, want %s", got, want)
	}
	want = `ALTER TABLE "people" ADD COLUMN "age" BIGINT`
	if got := d.AddColumn("people", schema.Column{Name: "age", DataType: schema.TypeInteger}); got != want {
		t.Errorf("AddColumn = %s, want %s", got, want)
	}
	if got := d.DropTable("people"); got != `DROP TABLE IF EXISTS "people"` {
		t.Errorf("DropTable = %s", got)
	}
}

func TestErrors(t *testing.T) {
	if errors.Is(ErrNotConnected, ErrCancelled) {
		t.Error("ErrNotConnected and ErrCancelled should be distinct")
	}
	if ErrNotConnected.Error() == ErrCancelled.Error() {
		t.Error("expected distinct error messages")
	}
}
