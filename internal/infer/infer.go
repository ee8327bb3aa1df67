// Package infer reads CSV files and infers a column type for every header.
package infer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"

	"github.com/sadopc/chatsheet/internal/schema"
)

// Options controls CSV parsing and inference.
type Options struct {
	// Delimiter defaults to a comma.
	Delimiter rune
	// SampleRows limits how many data rows are inspected per column.
	// Zero inspects every row.
	SampleRows int
}

// Table is a parsed CSV file: its inferred columns and raw rows.
type Table struct {
	Columns schema.ColumnSet
	Rows    [][]string
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	t, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// Read parses a CSV stream whose first record is the header.
func Read(r io.Reader, opts Options) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv has no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	names := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		names[i] = h
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read record")
		}
		if len(rec) == 1 && rec[0] == "" && len(names) > 1 {
			continue
		}
		if len(rec) != len(names) {
			line, _ := cr.FieldPos(0)
			return nil, errors.Errorf("line %d: expected %d fields, got %d", line, len(names), len(rec))
		}
		rows = append(rows, rec)
	}

	cols := make([]schema.Column, len(names))
	for i, name := range names {
		dt := inferColumn(rows, i, opts.SampleRows)
		cols[i] = schema.Column{Name: name, Type: dt.String(), DataType: dt, Nullable: true}
	}
	set, err := schema.NewColumnSet(cols...)
	if err != nil {
		return nil, errors.Wrap(err, "header")
	}
	return &Table{Columns: set, Rows: rows}, nil
}

func inferColumn(rows [][]string, col, sample int) schema.DataType {
	var values []string
	for i, row := range rows {
		if sample > 0 && i >= sample {
			break
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			values = append(values, v)
		}
	}
	return Infer(values)
}
