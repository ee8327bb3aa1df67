// Package app implements the interactive chat session: a line-based command
// loop for loading CSV files, running SQL and asking questions in plain
// language.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/audit"
	"github.com/sadopc/chatsheet/internal/config"
	"github.com/sadopc/chatsheet/internal/history"
	"github.com/sadopc/chatsheet/internal/llm"
	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/theme"
	"github.com/sadopc/chatsheet/internal/ui/decide"
	"github.com/sadopc/chatsheet/internal/ui/highlight"
	"github.com/sadopc/chatsheet/internal/ui/results"
)

// Prompt is printed before every command.
const Prompt = "> "

// Options wires a Session to its collaborators. Only Conn, In and Out are
// required.
type Options struct {
	Conn   adapter.Connection
	Config *config.Config
	In     decide.LineReader
	Out    io.Writer

	// Translator answers ask. When nil, ask reports TranslatorErr, or
	// llm.ErrNoAPIKey when that is nil too.
	Translator    llm.Translator
	TranslatorErr error

	// Decider resolves load conflicts. The default prompts on In.
	Decider loader.Decider

	History *history.History
	Journal *audit.Journal
	Logger  zerolog.Logger
	Theme   *theme.Theme
}

// Session is one chat session against a database connection.
type Session struct {
	conn          adapter.Connection
	cfg           *config.Config
	in            decide.LineReader
	out           io.Writer
	translator    llm.Translator
	translatorErr error
	loader        *loader.Loader
	hist          *history.History
	journal       *audit.Journal
	logger        zerolog.Logger
	th            *theme.Theme
	hl            *highlight.Highlighter

	// last is the most recent result set, the one export writes.
	last *adapter.QueryResult
}

// New builds a session from opts.
func New(opts Options) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	th := opts.Theme
	if th == nil {
		th = theme.Get(cfg.Theme)
	}
	s := &Session{
		conn:          opts.Conn,
		cfg:           cfg,
		in:            opts.In,
		out:           opts.Out,
		translator:    opts.Translator,
		translatorErr: opts.TranslatorErr,
		hist:          opts.History,
		journal:       opts.Journal,
		logger:        opts.Logger.With().Str("component", "chat").Logger(),
		th:            th,
	}
	if s.conn != nil {
		s.hl = highlight.New(s.conn.AdapterName(), th)
	}

	decider := opts.Decider
	if decider == nil {
		decider = &decide.Prompt{In: s.in, Out: s.out, Theme: th}
	}
	s.loader = loader.New(s.conn, decider,
		loader.WithLogger(opts.Logger),
		loader.WithJournal(s.journal),
	)
	return s
}

// Run reads commands until exit or end of input. It returns nil in both
// cases and only fails when reading the input fails.
func (s *Session) Run(ctx context.Context) error {
	s.printf("%s\n", s.th.MutedText.Render("Connected to "+s.describeConn()+". Type help for the list of commands."))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(s.out, s.th.Prompt.Render(Prompt))
		line, err := s.in.ReadLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
		if s.Handle(ctx, line) {
			return nil
		}
	}
}

// Handle runs one command line and reports whether the session should end.
// Command errors are printed, never returned.
func (s *Session) Handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	name, rest := splitCommand(line)
	cmd, ok := lookup(name)
	if !ok {
		s.errorf("Unknown command: %s", name)
		if m := suggest(name, commandNames()); m != "" {
			s.printf("Did you mean %q?\n", m)
		}
		return false
	}
	if cmd.quit {
		return true
	}
	if err := cmd.run(s, ctx, rest); err != nil {
		s.logger.Debug().Err(err).Str("command", cmd.names[0]).Msg("command failed")
		s.errorf("Error: %v", err)
	}
	return false
}

// Exec runs one command line and returns its error instead of printing it.
func (s *Session) Exec(ctx context.Context, line string) error {
	name, rest := splitCommand(strings.TrimSpace(line))
	cmd, ok := lookup(name)
	if !ok || cmd.quit {
		return fmt.Errorf("unknown command: %s", name)
	}
	return cmd.run(s, ctx, rest)
}

// Last returns the most recent result set, or nil.
func (s *Session) Last() *adapter.QueryResult {
	return s.last
}

func (s *Session) describeConn() string {
	if s.conn == nil {
		return "no database"
	}
	if db := s.conn.DatabaseName(); db != "" {
		return s.conn.AdapterName() + " (" + db + ")"
	}
	return s.conn.AdapterName()
}

// run executes query, prints its result and records it in history and the
// audit journal.
func (s *Session) run(ctx context.Context, kind history.Kind, prompt, query string) error {
	if s.conn == nil {
		return adapter.ErrNotConnected
	}
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Cancel() })
	defer stop()
	start := time.Now()
	res, err := s.conn.Execute(ctx, query)
	s.record(ctx, kind, prompt, query, res, time.Since(start), err)
	if err != nil {
		return err
	}
	if res.IsSelect {
		s.last = res
	}
	s.printf("%s\n", results.Render(res, results.Options{
		MaxRows:        s.cfg.Results.MaxRows,
		MaxColumnWidth: s.cfg.Results.MaxColumnWidth,
		Theme:          s.th,
	}))
	return nil
}

func (s *Session) record(ctx context.Context, kind history.Kind, prompt, query string, res *adapter.QueryResult, d time.Duration, err error) {
	e := history.Entry{
		Kind:         kind,
		Prompt:       prompt,
		Query:        query,
		Adapter:      s.conn.AdapterName(),
		DatabaseName: s.conn.DatabaseName(),
		DurationMS:   d.Milliseconds(),
		IsError:      err != nil,
	}
	if res != nil {
		e.RowCount = res.RowCount
	}
	if s.hist != nil {
		if herr := s.hist.Add(ctx, e); herr != nil {
			s.logger.Warn().Err(herr).Msg("history add failed")
		}
	}

	ae := audit.Entry{
		Kind:         audit.KindQuery,
		Query:        query,
		Prompt:       prompt,
		Adapter:      e.Adapter,
		DatabaseName: e.DatabaseName,
		DurationMS:   e.DurationMS,
		RowCount:     e.RowCount,
		IsError:      e.IsError,
	}
	if kind == history.KindAsk {
		ae.Kind = audit.KindAsk
	}
	if err != nil {
		ae.Error = err.Error()
	}
	s.journal.Log(ae)
}

// confirm asks a yes/no question; anything but y or yes is a no.
func (s *Session) confirm(question string) bool {
	fmt.Fprint(s.out, s.th.WarningText.Render(question)+" [y/N] ")
	answer, err := s.in.ReadLine()
	if err != nil {
		fmt.Fprintln(s.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) errorf(format string, args ...any) {
	fmt.Fprintln(s.out, s.th.ErrorText.Render(fmt.Sprintf(format, args...)))
}

func (s *Session) successf(format string, args ...any) {
	fmt.Fprintln(s.out, s.th.SuccessText.Render(fmt.Sprintf(format, args...)))
}
