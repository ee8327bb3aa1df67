// Package theme holds the lipgloss styles used by the chat session, the
// result tables and the conflict form. Each theme is built from a small
// palette so every style stays consistent with the others.
package theme

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds lipgloss.Style values for every rendered element.
type Theme struct {
	Name string

	// Chat
	Prompt  lipgloss.Style
	Heading lipgloss.Style

	// SQL syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style

	// Results table
	ResultsBorder lipgloss.Style
	ResultsHeader lipgloss.Style
	ResultsCell   lipgloss.Style
	ResultsNull   lipgloss.Style

	// Column diff
	DiffMatches  lipgloss.Style
	DiffNew      lipgloss.Style
	DiffMismatch lipgloss.Style
	DiffMissing  lipgloss.Style

	// Conflict form
	FormBorder   lipgloss.Style
	FormSelected lipgloss.Style
	FormKey      lipgloss.Style

	// General
	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	MutedText   lipgloss.Style
}

// palette is the set of colors a theme is derived from.
type palette struct {
	fg, muted, border         lipgloss.Color
	accent, accentAlt         lipgloss.Color
	keyword, str, num, fn, ty lipgloss.Color
	ident, comment            lipgloss.Color
	ok, warn, bad             lipgloss.Color
	selectFg, selectBg        lipgloss.Color
}

func build(name string, p palette) *Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return &Theme{
		Name: name,

		Prompt:  fg(p.accent).Bold(true),
		Heading: fg(p.accentAlt).Bold(true),

		SQLKeyword:    fg(p.keyword).Bold(true),
		SQLString:     fg(p.str),
		SQLNumber:     fg(p.num),
		SQLComment:    fg(p.comment).Italic(true),
		SQLOperator:   fg(p.fg),
		SQLFunction:   fg(p.fn),
		SQLType:       fg(p.ty),
		SQLIdentifier: fg(p.ident),

		ResultsBorder: fg(p.border),
		ResultsHeader: fg(p.accent).Bold(true).Padding(0, 1),
		ResultsCell:   fg(p.fg).Padding(0, 1),
		ResultsNull:   fg(p.muted).Italic(true).Padding(0, 1),

		DiffMatches:  fg(p.muted),
		DiffNew:      fg(p.ok).Bold(true),
		DiffMismatch: fg(p.warn).Bold(true),
		DiffMissing:  fg(p.muted).Italic(true),

		FormBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.accent).
			Padding(0, 1),
		FormSelected: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.selectFg).
			Background(p.selectBg),
		FormKey: fg(p.accentAlt).Bold(true),

		ErrorText:   fg(p.bad).Bold(true),
		SuccessText: fg(p.ok),
		WarningText: fg(p.warn),
		MutedText:   fg(p.muted),
	}
}

func newDefaultTheme() *Theme {
	return build("default", palette{
		fg: "#D4D4D4", muted: "#808080", border: "#3C3C3C",
		accent: "#569CD6", accentAlt: "#DCDCAA",
		keyword: "#569CD6", str: "#CE9178", num: "#B5CEA8", fn: "#DCDCAA", ty: "#4EC9B0",
		ident: "#9CDCFE", comment: "#6A9955",
		ok: "#4EC9B0", warn: "#CCA700", bad: "#F14C4C",
		selectFg: "#FFFFFF", selectBg: "#264F78",
	})
}

// newLightTheme suits light terminal backgrounds.
func newLightTheme() *Theme {
	return build("light", palette{
		fg: "#1E1E1E", muted: "#6E6E6E", border: "#C8C8C8",
		accent: "#0000FF", accentAlt: "#795E26",
		keyword: "#0000FF", str: "#A31515", num: "#098658", fn: "#795E26", ty: "#267F99",
		ident: "#001080", comment: "#008000",
		ok: "#008000", warn: "#BF8803", bad: "#CD3131",
		selectFg: "#000000", selectBg: "#ADD6FF",
	})
}

func newMonokaiTheme() *Theme {
	return build("monokai", palette{
		fg: "#F8F8F2", muted: "#75715E", border: "#49483E",
		accent: "#F92672", accentAlt: "#E6DB74",
		keyword: "#F92672", str: "#E6DB74", num: "#AE81FF", fn: "#A6E22E", ty: "#66D9EF",
		ident: "#F8F8F2", comment: "#75715E",
		ok: "#A6E22E", warn: "#FD971F", bad: "#F92672",
		selectFg: "#272822", selectBg: "#A6E22E",
	})
}

// Themes maps theme names to their definitions.
var Themes = map[string]*Theme{
	"default": newDefaultTheme(),
	"light":   newLightTheme(),
	"monokai": newMonokaiTheme(),
}

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme called name, or Default when there is none.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}

// Names lists the registered themes in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(Themes))
	for n := range Themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
