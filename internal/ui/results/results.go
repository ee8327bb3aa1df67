// Package results renders query results as terminal tables and exports them
// to files.
package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/theme"
)

// Options controls table rendering.
type Options struct {
	// MaxRows caps the printed rows; 0 prints all of them.
	MaxRows int
	// MaxColumnWidth truncates longer cells; 0 disables truncation.
	MaxColumnWidth int
	Theme          *theme.Theme
}

// Render formats res for the terminal. Statements without a result set
// render as their status message.
func Render(res *adapter.QueryResult, opts Options) string {
	if res == nil {
		return ""
	}
	th := opts.Theme
	if th == nil {
		th = theme.Default()
	}

	if !res.IsSelect {
		msg := res.Message
		if msg == "" {
			msg = "OK"
		}
		return th.SuccessText.Render(msg) + th.MutedText.Render(" ("+formatDuration(res.Duration)+")")
	}
	if len(res.Columns) == 0 {
		return th.MutedText.Render("(no columns)")
	}

	rows := res.Rows
	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		rows = rows[:opts.MaxRows]
	}

	headers := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		headers[i] = truncate(c.Name, opts.MaxColumnWidth)
	}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(headers))
		for j := range headers {
			if j < len(row) {
				cells[i][j] = truncate(row[j], opts.MaxColumnWidth)
			}
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(th.ResultsBorder).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.ResultsHeader
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == adapter.NullDisplay {
				return th.ResultsNull
			}
			return th.ResultsCell
		})

	return t.String() + "\n" + th.MutedText.Render(Footer(res, len(rows)))
}

// Footer summarizes how many of the result's rows were shown.
func Footer(res *adapter.QueryResult, shown int) string {
	total := len(res.Rows)
	noun := "rows"
	if total == 1 {
		noun = "row"
	}
	if shown < total {
		return fmt.Sprintf("(showing %d of %d %s, %s)", shown, total, noun, formatDuration(res.Duration))
	}
	return fmt.Sprintf("(%d %s, %s)", total, noun, formatDuration(res.Duration))
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
