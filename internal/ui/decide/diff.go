package decide

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/theme"
)

// RenderDiff lists every column of diff with its status and both types.
func RenderDiff(table string, diff reconcile.Diff, th *theme.Theme) string {
	if th == nil {
		th = theme.Default()
	}
	var b strings.Builder
	b.WriteString(th.Heading.Render(fmt.Sprintf("Columns of %q compared with the CSV:", table)))
	b.WriteByte('\n')

	width := len("column")
	for _, e := range diff.Entries {
		if n := lipgloss.Width(e.Name); n > width {
			width = n
		}
	}

	for _, e := range diff.Entries {
		fmt.Fprintf(&b, "  %-*s  %s  %s\n", width, e.Name, statusStyle(e.Status, th).Render(fmt.Sprintf("%-19s", e.Status)), typesOf(e))
	}
	return b.String()
}

// WriteDiff writes RenderDiff's output to w.
func WriteDiff(w io.Writer, table string, diff reconcile.Diff, th *theme.Theme) {
	io.WriteString(w, RenderDiff(table, diff, th))
}

func statusStyle(s reconcile.Status, th *theme.Theme) lipgloss.Style {
	switch s {
	case reconcile.New:
		return th.DiffNew
	case reconcile.TypeMismatch:
		return th.DiffMismatch
	case reconcile.MissingFromSource:
		return th.DiffMissing
	}
	return th.DiffMatches
}

func typesOf(e reconcile.Entry) string {
	switch {
	case e.Existing != nil && e.Incoming != nil:
		if e.Existing.DataType == e.Incoming.DataType {
			return e.Existing.DataType.String()
		}
		return fmt.Sprintf("table %s, csv %s", e.Existing.DataType, e.Incoming.DataType)
	case e.Incoming != nil:
		return "csv " + e.Incoming.DataType.String()
	case e.Existing != nil:
		return "table " + e.Existing.DataType.String()
	}
	return ""
}

// question describes one conflict.
func question(e reconcile.Entry) string {
	if e.Status == reconcile.New {
		return fmt.Sprintf("Column %q (%s) is not in the table.", e.Name, e.Incoming.DataType)
	}
	return fmt.Sprintf("Column %q is %s in the table but %s in the CSV.", e.Name, e.Existing.DataType, e.Incoming.DataType)
}
