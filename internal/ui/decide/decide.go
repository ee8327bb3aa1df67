// Package decide implements the deciders that resolve column conflicts
// during a load: a line prompt, a full-screen form and a fixed policy.
package decide

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/theme"
)

// LineReader yields one line of user input at a time, without the newline.
type LineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct {
	s *bufio.Scanner
}

// Lines wraps r so that a chat loop and a Prompt can share it.
func Lines(r io.Reader) LineReader {
	return &scannerReader{s: bufio.NewScanner(r)}
}

func (r *scannerReader) ReadLine() (string, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.s.Text(), nil
}

// ParseAction parses overwrite, rename or skip, or their first letters.
func ParseAction(s string) (reconcile.ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "o", "overwrite":
		return reconcile.ActionOverwrite, nil
	case "r", "rename":
		return reconcile.ActionRename, nil
	case "s", "skip":
		return reconcile.ActionSkip, nil
	}
	return 0, fmt.Errorf("unknown action %q (want overwrite, rename or skip)", s)
}

// Policy applies the same action to every conflict. RENAME appends
// RenameSuffix to the column name.
type Policy struct {
	Action       reconcile.ActionKind
	RenameSuffix string
}

func (p Policy) Decide(_ context.Context, _ string, diff reconcile.Diff) (reconcile.Decision, error) {
	suffix := p.RenameSuffix
	if p.Action == reconcile.ActionRename && suffix == "" {
		suffix = "_new"
	}
	return reconcile.Uniform(diff, p.Action, suffix), nil
}

// Abort refuses every load that has conflicts.
var Abort loader.Decider = loader.DeciderFunc(func(context.Context, string, reconcile.Diff) (reconcile.Decision, error) {
	return nil, loader.ErrSkipped
})

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Auto returns a Form when stdin and stdout are terminals and a Prompt
// reading from lines otherwise.
func Auto(lines LineReader, stdin, stdout *os.File, th *theme.Theme, renameSuffix string) loader.Decider {
	if IsTerminal(stdin) && IsTerminal(stdout) {
		return &Form{In: stdin, Out: stdout, Theme: th, RenameSuffix: renameSuffix}
	}
	return &Prompt{In: lines, Out: stdout, Theme: th}
}

// takenNames returns the lower-cased names a rename must avoid: every
// column in the diff plus targets already chosen.
func takenNames(diff reconcile.Diff, decision reconcile.Decision) map[string]bool {
	taken := make(map[string]bool, len(diff.Entries))
	for _, e := range diff.Entries {
		taken[strings.ToLower(e.Name)] = true
	}
	for _, a := range decision {
		if a.Kind == reconcile.ActionRename {
			taken[strings.ToLower(a.NewName)] = true
		}
	}
	return taken
}

// checkRename validates a rename target before it reaches the reconciler.
func checkRename(name string, diff reconcile.Diff, decision reconcile.Decision) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("the new name cannot be empty")
	}
	if takenNames(diff, decision)[strings.ToLower(name)] {
		return fmt.Errorf("column %q already exists or is already used", name)
	}
	return nil
}
