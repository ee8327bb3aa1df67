package results

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sadopc/chatsheet/internal/adapter"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("results: unknown export format %q (want csv or json)", s)
}

// Export writes res to path in format f.
func Export(path string, f Format, res *adapter.QueryResult) error {
	if res == nil || len(res.Columns) == 0 {
		return fmt.Errorf("results: nothing to export")
	}
	switch f {
	case FormatCSV:
		return ExportCSV(path, res.Columns, res.Rows)
	case FormatJSON:
		return ExportJSON(path, res.Columns, res.Rows)
	}
	return fmt.Errorf("results: unknown export format %q", f)
}

// ExportCSV writes the columns and rows to a CSV file at path.
func ExportCSV(path string, columns []adapter.ColumnMeta, rows [][]string) error {
	return writeFile(path, func(w io.Writer) error { return WriteCSV(w, columns, rows) })
}

// ExportJSON writes the rows to path as a JSON array of objects.
func ExportJSON(path string, columns []adapter.ColumnMeta, rows [][]string) error {
	return writeFile(path, func(w io.Writer) error { return WriteJSON(w, columns, rows) })
}

// WriteCSV writes a header row followed by rows.
func WriteCSV(w io.Writer, columns []adapter.ColumnMeta, rows [][]string) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("results: write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("results: write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an array of objects whose keys keep the column
// order. NULL cells become JSON null and missing cells empty strings.
func WriteJSON(w io.Writer, columns []adapter.ColumnMeta, rows [][]string) error {
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			return fmt.Errorf("results: encode column %q: %w", c.Name, err)
		}
		keys[i] = k
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("[")
	for r, row := range rows {
		if r > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		for i := range columns {
			if i > 0 {
				bw.WriteString(", ")
			}
			bw.Write(keys[i])
			bw.WriteString(": ")
			switch {
			case i >= len(row):
				bw.WriteString(`""`)
			case row[i] == adapter.NullDisplay:
				bw.WriteString("null")
			default:
				v, err := json.Marshal(row[i])
				if err != nil {
					return fmt.Errorf("results: encode row %d: %w", r+1, err)
				}
				bw.Write(v)
			}
		}
		bw.WriteString("}")
	}
	if len(rows) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
