package results

import (
	"strings"
	"testing"
	"time"

	"github.com/sadopc/chatsheet/internal/adapter"
)

func selectResult(rows int) *adapter.QueryResult {
	res := &adapter.QueryResult{
		Columns:  columns("id", "name"),
		IsSelect: true,
		Duration: 3 * time.Millisecond,
	}
	for i := range rows {
		name := "user"
		if i == 1 {
			name = adapter.NullDisplay
		}
		res.Rows = append(res.Rows, []string{strings.Repeat("9", i+1), name})
	}
	res.RowCount = int64(rows)
	return res
}

func TestRender_Table(t *testing.T) {
	out := Render(selectResult(3), Options{})
	for _, want := range []string{"id", "name", "user", "NULL", "999", "(3 rows, 3ms)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}

func TestRender_MaxRows(t *testing.T) {
	out := Render(selectResult(25), Options{MaxRows: 10})
	if !strings.Contains(out, "(showing 10 of 25 rows") {
		t.Errorf("footer missing:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("9", 11)) {
		t.Error("row 11 should not be rendered")
	}
}

func TestRender_Truncates(t *testing.T) {
	res := &adapter.QueryResult{
		Columns:  columns("text"),
		Rows:     [][]string{{"abcdefghijklmnop"}},
		IsSelect: true,
	}
	out := Render(res, Options{MaxColumnWidth: 5})
	if !strings.Contains(out, "abcd…") || strings.Contains(out, "abcdef") {
		t.Errorf("cell not truncated:\n%s", out)
	}
}

func TestRender_NonSelect(t *testing.T) {
	res := &adapter.QueryResult{Message: "2 row(s) affected", Duration: 2 * time.Second}
	out := Render(res, Options{})
	if !strings.Contains(out, "2 row(s) affected") || !strings.Contains(out, "2.00s") {
		t.Errorf("Render() = %q", out)
	}
	if Render(nil, Options{}) != "" {
		t.Error("Render(nil) should be empty")
	}
}

func TestFooter(t *testing.T) {
	res := selectResult(1)
	if got := Footer(res, 1); got != "(1 row, 3ms)" {
		t.Errorf("Footer() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 0, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"hello", 1, "…"},
		{"ünïcödé", 3, "ün…"},
		{"a\nb", 0, "a b"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "500µs"},
		{42 * time.Millisecond, "42ms"},
		{1500 * time.Millisecond, "1.50s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
