package decide

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/theme"
)

// Form resolves conflicts in a full-screen form, one column at a time.
type Form struct {
	In           io.Reader
	Out          io.Writer
	Theme        *theme.Theme
	RenameSuffix string
}

func (f *Form) Decide(ctx context.Context, table string, diff reconcile.Diff) (reconcile.Decision, error) {
	if !diff.HasConflicts() {
		return reconcile.Decision{}, nil
	}
	m := newFormModel(table, diff, f.Theme, f.RenameSuffix)
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f.In != nil {
		opts = append(opts, tea.WithInput(f.In))
	}
	if f.Out != nil {
		opts = append(opts, tea.WithOutput(f.Out))
	}
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("conflict form: %w", err)
	}
	fm := final.(formModel)
	if fm.aborted {
		return nil, loader.ErrSkipped
	}
	return fm.decision, nil
}

type formModel struct {
	table     string
	diff      reconcile.Diff
	conflicts []reconcile.Entry
	current   int
	decision  reconcile.Decision
	suffix    string
	th        *theme.Theme

	renaming bool
	input    textinput.Model
	errMsg   string
	aborted  bool
	done     bool
}

func newFormModel(table string, diff reconcile.Diff, th *theme.Theme, suffix string) formModel {
	if th == nil {
		th = theme.Default()
	}
	if suffix == "" {
		suffix = "_new"
	}
	ti := textinput.New()
	ti.Prompt = "New name: "
	ti.CharLimit = 128
	return formModel{
		table:     table,
		diff:      diff,
		conflicts: diff.Conflicts(),
		decision:  reconcile.Decision{},
		suffix:    suffix,
		th:        th,
		input:     ti,
	}
}

func (m formModel) Init() tea.Cmd {
	return nil
}

func (m formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.renaming {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	if key.String() == "ctrl+c" {
		m.aborted = true
		return m, tea.Quit
	}
	if m.renaming {
		return m.updateRename(key)
	}

	e := m.conflicts[m.current]
	switch strings.ToLower(key.String()) {
	case "o":
		return m.choose(e, reconcile.Overwrite())
	case "s":
		return m.choose(e, reconcile.Skip())
	case "r":
		m.renaming = true
		m.errMsg = ""
		m.input.SetValue(e.Name + m.suffix)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "up", "k", "backspace":
		if m.current > 0 {
			m.current--
			delete(m.decision, m.conflicts[m.current].Name)
		}
	case "esc", "q":
		m.aborted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m formModel) updateRename(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if err := checkRename(name, m.diff, m.decision); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.renaming = false
		m.input.Blur()
		return m.choose(m.conflicts[m.current], reconcile.Rename(name))
	case "esc":
		m.renaming = false
		m.errMsg = ""
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m formModel) choose(e reconcile.Entry, a reconcile.Action) (tea.Model, tea.Cmd) {
	m.decision[e.Name] = a
	m.errMsg = ""
	if m.current == len(m.conflicts)-1 {
		m.done = true
		return m, tea.Quit
	}
	m.current++
	return m, nil
}

func (m formModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	th := m.th
	e := m.conflicts[m.current]

	var decided []string
	for _, c := range m.conflicts[:m.current] {
		decided = append(decided, fmt.Sprintf("  %s: %s", c.Name, th.SuccessText.Render(m.decision[c.Name].String())))
	}

	var controls string
	if m.renaming {
		controls = m.input.View() + "\n" + th.MutedText.Render("enter accept  esc back")
	} else {
		controls = strings.Join([]string{
			th.FormKey.Render("o") + " overwrite",
			th.FormKey.Render("r") + " rename",
			th.FormKey.Render("s") + " skip",
			th.FormKey.Render("esc") + " cancel load",
		}, "  ")
	}

	parts := []string{
		RenderDiff(m.table, m.diff, th),
		th.FormSelected.Render(fmt.Sprintf("Conflict %d of %d", m.current+1, len(m.conflicts))),
		question(e),
	}
	if len(decided) > 0 {
		parts = append(parts, "", strings.Join(decided, "\n"))
	}
	parts = append(parts, "", controls)
	if m.errMsg != "" {
		parts = append(parts, th.ErrorText.Render(m.errMsg))
	}
	return th.FormBorder.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)) + "\n"
}
