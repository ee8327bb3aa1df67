// Package llm translates natural-language questions into SQL with a hosted
// chat-completion model.
package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/config"
)

var (
	ErrNoAPIKey      = errors.New("llm: no API key configured (set OPENAI_API_KEY or llm.api_key)")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Translation is a generated statement and the model's explanation of it.
type Translation struct {
	SQL         string
	Explanation string
	Raw         string
}

// Translator turns a question into SQL, given a description of the schema.
type Translator interface {
	Translate(ctx context.Context, question, schemaContext string) (*Translation, error)
}

// OpenAI is a Translator backed by the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	dialect     string
	logger      zerolog.Logger
}

// NewOpenAI builds a client from cfg. dialect names the SQL flavour the
// model must produce.
func NewOpenAI(cfg config.LLMConfig, dialect string, logger zerolog.Logger) (*OpenAI, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, ErrNoAPIKey
	}

	cc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(cc),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		dialect:     dialect,
		logger:      logger.With().Str("component", "llm").Logger(),
	}, nil
}

// Translate asks the model for a statement answering question.
func (o *OpenAI) Translate(ctx context.Context, question, schemaContext string) (*Translation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("llm: empty question")
	}

	// A zero temperature would be dropped by omitempty.
	temp := o.temperature
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(o.dialect, schemaContext)},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		Temperature: temp,
		MaxTokens:   o.maxTokens,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error().Err(err).Str("model", o.model).Msg("chat completion failed")
		return nil, errors.Wrap(err, "llm: chat completion")
	}
	o.logger.Debug().
		Str("model", o.model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("chat completion")

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	sql, explanation := ParseResponse(raw)
	if sql == "" {
		return &Translation{Explanation: explanation, Raw: raw}, errors.Wrapf(ErrEmptyResponse, "no SQL in response %q", raw)
	}
	return &Translation{SQL: sql, Explanation: explanation, Raw: raw}, nil
}

// SystemPrompt instructs the model to answer in the two-heading format
// ParseResponse understands.
func SystemPrompt(dialect, schemaContext string) string {
	if dialect == "" {
		dialect = "SQL"
	}
	var b strings.Builder
	b.WriteString("You are an assistant that converts user requests into SQL statements.\n")
	fmt.Fprintf(&b, "The database is %s. Its current schema:\n%s\n\n", dialect, schemaContext)
	b.WriteString("Requirements:\n")
	b.WriteString("1. Write one SQL statement that answers the user's question or instruction.\n")
	fmt.Fprintf(&b, "2. The statement must be valid %s syntax and use only the tables and columns above.\n", dialect)
	b.WriteString("3. Give a short explanation of what the statement does.\n")
	b.WriteString("4. Do not wrap the SQL in code fences.\n\n")
	b.WriteString("Respond exactly in this format, headings included:\n")
	b.WriteString("SQL Query\n<the SQL statement>\n\nExplanation\n<short explanation>\n")
	return b.String()
}

// ParseResponse splits a model reply into its SQL and explanation. Lines
// containing code fences are dropped. When neither heading is present the
// whole cleaned reply is taken as SQL.
func ParseResponse(raw string) (sql, explanation string) {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, "```") {
			continue
		}
		kept = append(kept, strings.TrimRight(line, "\r"))
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))

	const (
		none = iota
		inSQL
		inExplanation
	)
	var (
		mode     = none
		sqlLines []string
		expLines []string
	)
	for _, line := range kept {
		switch heading(line) {
		case "sql query", "sql":
			mode = inSQL
			continue
		case "explanation":
			mode = inExplanation
			continue
		}
		switch mode {
		case inSQL:
			sqlLines = append(sqlLines, line)
		case inExplanation:
			expLines = append(expLines, line)
		}
	}

	sql = strings.TrimSpace(strings.Join(sqlLines, "\n"))
	explanation = strings.TrimSpace(strings.Join(expLines, "\n"))
	if sql == "" && explanation == "" {
		return cleaned, ""
	}
	return sql, explanation
}

// heading normalizes a potential heading line such as "**SQL Query:**".
func heading(line string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(line), "#*_: \t"))
}

// SchemaContext describes every table of conn as "- table (col TYPE, ...)".
func SchemaContext(ctx context.Context, conn adapter.Connection) (string, error) {
	tables, err := conn.Tables(ctx)
	if err != nil {
		return "", errors.Wrap(err, "list tables")
	}
	if len(tables) == 0 {
		return "No tables available.", nil
	}

	lines := make([]string, 0, len(tables))
	for _, t := range tables {
		cols, err := conn.Columns(ctx, t.Name)
		if err != nil {
			return "", errors.Wrapf(err, "columns of %s", t.Name)
		}
		defs := make([]string, len(cols))
		for i, c := range cols {
			typ := c.Type
			if typ == "" {
				typ = c.DataType.String()
			}
			defs[i] = c.Name + " " + typ
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", t.Name, strings.Join(defs, ", ")))
	}
	return strings.Join(lines, "\n"), nil
}
