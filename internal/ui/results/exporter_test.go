package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sadopc/chatsheet/internal/adapter"
)

func columns(names ...string) []adapter.ColumnMeta {
	cols := make([]adapter.ColumnMeta, len(names))
	for i, name := range names {
		cols[i] = adapter.ColumnMeta{Name: name}
	}
	return cols
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")
	rows := [][]string{
		{"1", "Alice", "alice@example.com"},
		{"2", "Bob, Jr.", "say \"hi\""},
	}

	if err := ExportCSV(path, columns("id", "name", "note"), rows); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}

	want := [][]string{{"id", "name", "note"}, rows[0], rows[1]}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
}

func TestExportCSV_InvalidPath(t *testing.T) {
	err := ExportCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), columns("a"), nil)
	if err == nil {
		t.Fatal("ExportCSV() error = nil for invalid path")
	}
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name string
		cols []adapter.ColumnMeta
		rows [][]string
		want string
	}{
		{
			name: "keeps column order",
			cols: columns("z", "a"),
			rows: [][]string{{"1", "x"}},
			want: "[\n  {\"z\": \"1\", \"a\": \"x\"}\n]\n",
		},
		{
			name: "null and short rows",
			cols: columns("id", "email", "extra"),
			rows: [][]string{{"1", adapter.NullDisplay}},
			want: "[\n  {\"id\": \"1\", \"email\": null, \"extra\": \"\"}\n]\n",
		},
		{
			name: "empty",
			cols: columns("id"),
			rows: nil,
			want: "[]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteJSON(&buf, tt.cols, tt.rows); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("WriteJSON() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestExportJSON_ValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	rows := [][]string{
		{"1", "line\nbreak \"quoted\""},
		{"2", "<tag> & ünïcode"},
	}
	if err := ExportJSON(path, columns("id", "text"), rows); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}
	if len(got) != 2 || got[0]["text"] != rows[0][1] || got[1]["text"] != rows[1][1] {
		t.Errorf("decoded = %v", got)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	res := &adapter.QueryResult{Columns: columns("n"), Rows: [][]string{{"1"}}, IsSelect: true}

	if err := Export(filepath.Join(dir, "a.csv"), FormatCSV, res); err != nil {
		t.Errorf("Export(csv) error = %v", err)
	}
	if err := Export(filepath.Join(dir, "a.json"), FormatJSON, res); err != nil {
		t.Errorf("Export(json) error = %v", err)
	}
	if err := Export(filepath.Join(dir, "a.x"), Format("xml"), res); err == nil {
		t.Error("Export(xml) error = nil")
	}
	if err := Export(filepath.Join(dir, "b.csv"), FormatCSV, nil); err == nil || !strings.Contains(err.Error(), "nothing to export") {
		t.Errorf("Export(nil) error = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{" JSON ", FormatJSON, false},
		{"xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
