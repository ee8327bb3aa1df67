package decide

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/theme"
)

// Prompt asks about each conflict on a line-oriented terminal.
type Prompt struct {
	In    LineReader
	Out   io.Writer
	Theme *theme.Theme
}

func (p *Prompt) Decide(ctx context.Context, table string, diff reconcile.Diff) (reconcile.Decision, error) {
	th := p.Theme
	if th == nil {
		th = theme.Default()
	}
	WriteDiff(p.Out, table, diff, th)

	decision := reconcile.Decision{}
	for _, e := range diff.Conflicts() {
		fmt.Fprintln(p.Out, th.WarningText.Render(question(e)))
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			answer, err := p.ask("(O)verwrite / (R)ename / (S)kip column, (Q)uit load? ")
			if err != nil {
				return nil, err
			}
			if a := strings.ToLower(answer); a == "q" || a == "quit" {
				return nil, loader.ErrSkipped
			}
			kind, err := ParseAction(answer)
			if err != nil {
				fmt.Fprintln(p.Out, th.ErrorText.Render("Please answer O, R, S or Q."))
				continue
			}
			if kind != reconcile.ActionRename {
				decision[e.Name] = reconcile.Action{Kind: kind}
				break
			}
			name, err := p.ask(fmt.Sprintf("New column name for %q: ", e.Name))
			if err != nil {
				return nil, err
			}
			if err := checkRename(name, diff, decision); err != nil {
				fmt.Fprintln(p.Out, th.ErrorText.Render(err.Error()))
				continue
			}
			decision[e.Name] = reconcile.Rename(strings.TrimSpace(name))
			break
		}
	}
	return decision, nil
}

// ask prints label and reads one trimmed answer. End of input abandons the
// load.
func (p *Prompt) ask(label string) (string, error) {
	fmt.Fprint(p.Out, label)
	line, err := p.In.ReadLine()
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.Out)
		return "", fmt.Errorf("%w: input closed", loader.ErrSkipped)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
