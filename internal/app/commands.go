package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/history"
	"github.com/sadopc/chatsheet/internal/infer"
	"github.com/sadopc/chatsheet/internal/llm"
	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/schema"
	"github.com/sadopc/chatsheet/internal/ui/results"
)

type command struct {
	names   []string
	usage   string
	summary string
	quit    bool
	run     func(s *Session, ctx context.Context, args string) error
}

var commands []command

func init() {
	commands = []command{
		{names: []string{"help"}, usage: "help", summary: "show this list", run: (*Session).cmdHelp},
		{names: []string{"tables", "list"}, usage: "list tables", summary: "list the tables in the database", run: (*Session).cmdTables},
		{names: []string{"describe"}, usage: "describe <table>", summary: "show the columns of a table", run: (*Session).cmdDescribe},
		{names: []string{"load"}, usage: "load <csv> <table> [--replace] [--dry-run]", summary: "load a CSV file into a table", run: (*Session).cmdLoad},
		{names: []string{"query"}, usage: "query <sql>", summary: "run a SQL statement", run: (*Session).cmdQuery},
		{names: []string{"ask"}, usage: "ask <question>", summary: "ask a question in plain language", run: (*Session).cmdAsk},
		{names: []string{"history"}, usage: "history [n] | history search <text> | history clear", summary: "show past statements", run: (*Session).cmdHistory},
		{names: []string{"export"}, usage: "export csv|json <path>", summary: "save the last result set", run: (*Session).cmdExport},
		{names: []string{"exit", "quit", `\q`}, usage: "exit", summary: "leave chatsheet", quit: true},
	}
}

func lookup(name string) (command, bool) {
	name = strings.ToLower(name)
	for _, c := range commands {
		for _, n := range c.names {
			if n == name {
				return c, true
			}
		}
	}
	return command{}, false
}

func commandNames() []string {
	var names []string
	for _, c := range commands {
		names = append(names, c.names...)
	}
	return names
}

// splitCommand splits line into its command word and the raw remainder.
func splitCommand(line string) (name, rest string) {
	name, rest, _ = strings.Cut(line, " ")
	return name, strings.TrimSpace(rest)
}

// splitArgs splits s on whitespace, keeping double-quoted runs together.
func splitArgs(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}

// suggest returns the candidate closest to input, or "" when nothing is
// close. Shorter prefixes of input are tried when the whole word matches
// nothing, down to three characters.
func suggest(input string, candidates []string) string {
	lower := make([]string, len(candidates))
	for i, c := range candidates {
		lower[i] = strings.ToLower(c)
	}
	pattern := []rune(strings.ToLower(input))
	for n := len(pattern); n >= 3 || n == len(pattern) && n > 0; n-- {
		if matches := fuzzy.Find(string(pattern[:n]), lower); len(matches) > 0 {
			return candidates[matches[0].Index]
		}
	}
	return ""
}

func (s *Session) cmdHelp(context.Context, string) error {
	s.printf("%s\n", s.th.Heading.Render("Commands:"))
	width := 0
	for _, c := range commands {
		width = max(width, len(c.usage))
	}
	for _, c := range commands {
		s.printf("  %-*s  %s\n", width, c.usage, s.th.MutedText.Render(c.summary))
	}
	return nil
}

func (s *Session) cmdTables(ctx context.Context, args string) error {
	if args != "" && !strings.EqualFold(args, "tables") {
		return fmt.Errorf("usage: list tables")
	}
	if s.conn == nil {
		return adapter.ErrNotConnected
	}
	tables, err := s.conn.Tables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		s.printf("No tables found in the database.\n")
		return nil
	}
	s.printf("%s\n", s.th.Heading.Render("Tables:"))
	for _, t := range tables {
		s.printf("  %s\n", t.Name)
	}
	return nil
}

// findTable resolves name case-insensitively among the database tables.
func (s *Session) findTable(ctx context.Context, name string) (string, error) {
	tables, err := s.conn.Tables(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		if schema.SameName(t.Name, name) {
			return t.Name, nil
		}
		names[i] = t.Name
	}
	msg := fmt.Sprintf("table %q not found", name)
	if m := suggest(name, names); m != "" {
		msg += fmt.Sprintf(". Did you mean %q?", m)
	}
	return "", errors.New(msg)
}

func (s *Session) cmdDescribe(ctx context.Context, args string) error {
	if args == "" {
		return fmt.Errorf("usage: describe <table>")
	}
	if s.conn == nil {
		return adapter.ErrNotConnected
	}
	table, err := s.findTable(ctx, args)
	if err != nil {
		return err
	}
	cols, err := s.conn.Columns(ctx, table)
	if err != nil {
		return err
	}
	res := &adapter.QueryResult{
		Columns:  []adapter.ColumnMeta{{Name: "column"}, {Name: "type"}, {Name: "nullable"}, {Name: "key"}},
		IsSelect: true,
		RowCount: int64(len(cols)),
	}
	for _, c := range cols {
		key := ""
		if c.IsPK {
			key = "PK"
		}
		res.Rows = append(res.Rows, []string{c.Name, c.Type, strconv.FormatBool(c.Nullable), key})
	}
	s.printf("%s\n", s.th.Heading.Render(table))
	s.printf("%s\n", results.Render(res, results.Options{Theme: s.th}))
	return nil
}

func (s *Session) cmdLoad(ctx context.Context, args string) error {
	req := loader.Request{
		Infer: infer.Options{
			Delimiter:  s.cfg.Load.DelimiterRune(),
			SampleRows: s.cfg.Load.SampleRows,
		},
	}
	var pos []string
	for _, a := range splitArgs(args) {
		switch a {
		case "--replace":
			req.Replace = true
		case "--dry-run":
			req.DryRun = true
		default:
			pos = append(pos, a)
		}
	}
	if len(pos) != 2 {
		return fmt.Errorf("usage: load <csv> <table> [--replace] [--dry-run]")
	}
	req.CSVPath, req.Table = pos[0], pos[1]
	return s.Load(ctx, req)
}

// Load runs req with the session's decider, then prints the report and a
// preview of the table.
func (s *Session) Load(ctx context.Context, req loader.Request) error {
	rep, err := s.loader.Load(ctx, req)
	if errors.Is(err, loader.ErrSkipped) {
		s.printf("%s\n", s.th.WarningText.Render(fmt.Sprintf("Load into %q skipped.", req.Table)))
		return nil
	}
	if !req.DryRun {
		s.recordLoad(ctx, req, rep, err)
	}
	if err != nil {
		return err
	}
	s.printReport(rep)
	if rep.DryRun {
		return nil
	}
	return s.preview(ctx, rep.Table)
}

// recordLoad adds a load to history. The loader journals it itself.
func (s *Session) recordLoad(ctx context.Context, req loader.Request, rep *loader.Report, err error) {
	if s.hist == nil {
		return
	}
	e := history.Entry{
		Kind:         history.KindLoad,
		Prompt:       fmt.Sprintf("load %s %s", req.CSVPath, req.Table),
		Adapter:      s.conn.AdapterName(),
		DatabaseName: s.conn.DatabaseName(),
		IsError:      err != nil,
	}
	if rep != nil {
		e.Query = strings.Join(rep.Statements, ";\n")
		e.RowCount = rep.RowsLoaded
		e.DurationMS = rep.Duration.Milliseconds()
	}
	if herr := s.hist.Add(ctx, e); herr != nil {
		s.logger.Warn().Err(herr).Msg("history add failed")
	}
}

func (s *Session) printReport(rep *loader.Report) {
	switch {
	case rep.Replaced:
		s.printf("Replaced table %q with %d columns from %s.\n", rep.Table, rep.Incoming.Len(), rep.Source)
	case rep.Created:
		s.printf("Created table %q with %d columns from %s.\n", rep.Table, rep.Incoming.Len(), rep.Source)
	}
	if len(rep.Statements) > 0 {
		label := "Schema changes:"
		if rep.DryRun {
			label = "Statements that would run:"
		}
		s.printf("%s\n", s.th.Heading.Render(label))
		for _, stmt := range rep.Statements {
			s.printf("  %s;\n", s.hl.SQL(stmt))
		}
	}
	if len(rep.Skipped) > 0 {
		s.printf("Skipped columns: %s\n", strings.Join(rep.Skipped, ", "))
	}
	if rep.DryRun {
		s.printf("%s\n", s.th.MutedText.Render("Dry run: nothing was changed."))
		return
	}
	s.successf("Loaded %d rows into %q in %s.", rep.RowsLoaded, rep.Table, rep.Duration.Round(time.Millisecond))
}

func (s *Session) preview(ctx context.Context, table string) error {
	n := s.cfg.Load.PreviewRows
	if n <= 0 {
		return nil
	}
	q := fmt.Sprintf("SELECT * FROM %s LIMIT %d", s.conn.Dialect().QuoteIdent(table), n)
	res, err := s.conn.Execute(ctx, q)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	s.last = res
	s.printf("%s\n", results.Render(res, results.Options{
		MaxColumnWidth: s.cfg.Results.MaxColumnWidth,
		Theme:          s.th,
	}))
	return nil
}

func (s *Session) cmdQuery(ctx context.Context, args string) error {
	if args == "" {
		return fmt.Errorf("usage: query <sql>")
	}
	return s.Query(ctx, args)
}

// Query runs a SQL statement and prints its result.
func (s *Session) Query(ctx context.Context, sql string) error {
	return s.run(ctx, history.KindQuery, "", sql)
}

func (s *Session) cmdAsk(ctx context.Context, question string) error {
	if question == "" {
		return fmt.Errorf("usage: ask <question>")
	}
	return s.Ask(ctx, question)
}

// Ask translates question to SQL, shows it and runs it. Statements that
// change the database are confirmed first when llm.confirm_writes is set.
func (s *Session) Ask(ctx context.Context, question string) error {
	if s.translator == nil {
		if s.translatorErr != nil {
			return s.translatorErr
		}
		return llm.ErrNoAPIKey
	}
	if s.conn == nil {
		return adapter.ErrNotConnected
	}
	schemaText, err := llm.SchemaContext(ctx, s.conn)
	if err != nil {
		return err
	}
	tr, err := s.translator.Translate(ctx, question, schemaText)
	if err != nil {
		return err
	}

	s.printf("%s\n%s\n", s.th.Heading.Render("SQL Query:"), s.hl.SQL(tr.SQL))
	if tr.Explanation != "" {
		s.printf("%s\n%s\n", s.th.Heading.Render("Explanation:"), tr.Explanation)
	}
	if s.cfg.LLM.ConfirmWrites && !adapter.IsSelect(tr.SQL) {
		if !s.confirm("This statement changes the database. Run it?") {
			s.printf("Not executed.\n")
			return nil
		}
	}
	return s.run(ctx, history.KindAsk, question, tr.SQL)
}

func (s *Session) cmdHistory(ctx context.Context, args string) error {
	if s.hist == nil {
		s.printf("History is disabled.\n")
		return nil
	}
	sub, rest := splitCommand(args)
	var (
		entries []history.Entry
		err     error
	)
	switch strings.ToLower(sub) {
	case "":
		entries, err = s.hist.Recent(ctx, 10)
	case "search":
		if rest == "" {
			return fmt.Errorf("usage: history search <text>")
		}
		entries, err = s.hist.Search(ctx, history.Containing(rest), 20)
	case "clear":
		if err := s.hist.Clear(ctx); err != nil {
			return err
		}
		s.printf("History cleared.\n")
		return nil
	default:
		n, convErr := strconv.Atoi(sub)
		if convErr != nil || n <= 0 {
			return fmt.Errorf("usage: history [n] | history search <text> | history clear")
		}
		entries, err = s.hist.Recent(ctx, n)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		s.printf("No history yet.\n")
		return nil
	}
	for _, e := range entries {
		s.printHistoryEntry(e)
	}
	return nil
}

func (s *Session) printHistoryEntry(e history.Entry) {
	stamp := s.th.MutedText.Render(e.ExecutedAt.Local().Format("2006-01-02 15:04"))
	status := ""
	if e.IsError {
		status = " " + s.th.ErrorText.Render("(failed)")
	}
	switch {
	case e.Kind == history.KindAsk && e.Prompt != "":
		s.printf("%s  ask: %s%s\n      %s\n", stamp, e.Prompt, status, s.hl.SQL(e.Query))
		return
	case e.Kind == history.KindLoad:
		s.printf("%s  %s (%d rows)%s\n", stamp, e.Prompt, e.RowCount, status)
		return
	}
	s.printf("%s  %s%s\n", stamp, s.hl.SQL(e.Query), status)
}

func (s *Session) cmdExport(_ context.Context, args string) error {
	parts := splitArgs(args)
	if len(parts) != 2 {
		return fmt.Errorf("usage: export csv|json <path>")
	}
	f, err := results.ParseFormat(parts[0])
	if err != nil {
		return err
	}
	if s.last == nil {
		return fmt.Errorf("no results to export")
	}
	if err := results.Export(parts[1], f, s.last); err != nil {
		return err
	}
	s.successf("Exported %d rows to %s.", len(s.last.Rows), parts[1])
	return nil
}
