// Package highlight colours SQL for terminal output using chroma lexers and
// the active theme's lipgloss styles.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/chatsheet/internal/theme"
)

// lexerNames maps adapter names to chroma lexer names.
var lexerNames = map[string]string{
	"postgres": "PostgreSQL",
	"mysql":    "MySQL",
}

// Highlighter renders SQL with a theme.
type Highlighter struct {
	lexer chroma.Lexer
	theme *theme.Theme
}

// New returns a Highlighter for the given adapter's SQL flavour. Unknown
// adapters use the generic SQL lexer.
func New(adapterName string, th *theme.Theme) *Highlighter {
	var l chroma.Lexer
	if name, ok := lexerNames[adapterName]; ok {
		l = lexers.Get(name)
	}
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l), theme: th}
}

// SQL returns sql with every token styled. Newlines are emitted unstyled
// so multi-line statements keep their shape.
func (h *Highlighter) SQL(sql string) string {
	if h == nil || h.theme == nil {
		return sql
	}
	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := h.styleFor(tok.Type)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		for i, part := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if part != "" {
				b.WriteString(style.Render(part))
			}
		}
	}
	return b.String()
}

func (h *Highlighter) styleFor(tt chroma.TokenType) (lipgloss.Style, bool) {
	th := h.theme
	switch {
	case tt == chroma.KeywordType, tt == chroma.NameBuiltin:
		return th.SQLType, true
	case tt == chroma.NameFunction:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt.InCategory(chroma.Operator):
		return th.SQLOperator, true
	case tt == chroma.Name, tt == chroma.NameVariable:
		return th.SQLIdentifier, true
	}
	return lipgloss.Style{}, false
}
