// Package loader moves a CSV file into a database table: it infers the
// file's schema, reconciles it with the table, applies the resulting schema
// mutations and inserts the converted rows.
package loader

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/audit"
	"github.com/sadopc/chatsheet/internal/infer"
	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/schema"
)

// ErrSkipped is returned by a Decider to abandon the load. Load returns it
// (wrapped) together with the partial report.
var ErrSkipped = errors.New("load skipped")

// Decider chooses an action for every conflicting column of diff.
type Decider interface {
	Decide(ctx context.Context, table string, diff reconcile.Diff) (reconcile.Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, table string, diff reconcile.Diff) (reconcile.Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, table string, diff reconcile.Diff) (reconcile.Decision, error) {
	return f(ctx, table, diff)
}

// Journal records finished loads.
type Journal interface {
	Log(e audit.Entry)
}

// Request describes one load.
type Request struct {
	CSVPath string
	Table   string
	// Replace drops an existing table and recreates it from the file.
	Replace bool
	// DryRun plans and renders the statements without executing anything.
	DryRun bool
	Infer  infer.Options
}

// Report describes what a load did, or would do for a dry run.
type Report struct {
	RunID      string
	Table      string
	Source     string
	Created    bool
	Replaced   bool
	DryRun     bool
	Incoming   schema.ColumnSet
	Diff       reconcile.Diff
	Decision   reconcile.Decision
	Mutations  []reconcile.Mutation
	Statements []string
	// Targets maps loaded CSV columns to table columns.
	Targets map[string]string
	// Skipped lists CSV columns whose data was not loaded.
	Skipped    []string
	RowsLoaded int64
	Duration   time.Duration
}

// Loader runs loads against one connection.
type Loader struct {
	conn    adapter.Connection
	decider Decider
	logger  zerolog.Logger
	journal Journal
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(ld *Loader) { ld.logger = l.With().Str("component", "loader").Logger() }
}

// WithJournal records every load in j.
func WithJournal(j Journal) Option {
	return func(ld *Loader) { ld.journal = j }
}

// New returns a Loader. decider may be nil when loads never hit conflicts;
// a conflict without a decider fails the load.
func New(conn adapter.Connection, decider Decider, opts ...Option) *Loader {
	ld := &Loader{conn: conn, decider: decider, logger: zerolog.Nop()}
	for _, o := range opts {
		o(ld)
	}
	return ld
}

// Load runs req. On ErrSkipped and on failures after planning, the returned
// report describes the work done so far.
func (l *Loader) Load(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	rep := &Report{
		RunID:  uuid.NewString(),
		Table:  strings.TrimSpace(req.Table),
		Source: req.CSVPath,
		DryRun: req.DryRun,
	}
	log := l.logger.With().Str("run_id", rep.RunID).Str("table", rep.Table).Logger()

	err := l.load(ctx, req, rep, log)
	rep.Duration = time.Since(start)
	l.record(rep, err)

	switch {
	case errors.Is(err, ErrSkipped):
		log.Info().Msg("load skipped")
	case err != nil:
		log.Error().Err(err).Msg("load failed")
	default:
		log.Info().
			Bool("created", rep.Created).
			Bool("dry_run", rep.DryRun).
			Int("mutations", len(rep.Mutations)).
			Int64("rows", rep.RowsLoaded).
			Dur("duration", rep.Duration).
			Msg("load finished")
	}
	return rep, err
}

func (l *Loader) load(ctx context.Context, req Request, rep *Report, log zerolog.Logger) error {
	if rep.Table == "" {
		return errors.New("table name is empty")
	}
	if l.conn == nil {
		return adapter.ErrNotConnected
	}

	tbl, err := infer.ReadFile(req.CSVPath, req.Infer)
	if err != nil {
		return err
	}
	rep.Incoming = tbl.Columns
	log.Debug().Int("columns", tbl.Columns.Len()).Int("rows", len(tbl.Rows)).Msg("csv parsed")

	stored, exists, err := l.conn.LookupTable(ctx, rep.Table)
	if err != nil {
		return errors.Wrap(err, "check table")
	}
	if exists {
		rep.Table = stored
	}

	var current []schema.Column
	switch {
	case !exists:
		rep.Created = true
		rep.Mutations = reconcile.CreatePlan(tbl.Columns)
		rep.Targets = reconcile.IdentityTargets(tbl.Columns)
	case req.Replace:
		rep.Replaced = true
		rep.Mutations = reconcile.ReplacePlan(tbl.Columns)
		rep.Targets = reconcile.IdentityTargets(tbl.Columns)
	default:
		current, err = l.conn.Columns(ctx, rep.Table)
		if err != nil {
			return errors.Wrap(err, "fetch columns")
		}
		if err := l.reconcile(ctx, tbl.Columns, current, rep); err != nil {
			return err
		}
	}
	rep.Skipped = skipped(tbl.Columns, rep.Targets)

	final, stmts, err := Render(l.conn.Dialect(), rep.Table, current, rep.Mutations)
	if err != nil {
		return err
	}
	rep.Statements = stmts

	cols, rows, err := convertRows(tbl, rep.Targets, final)
	if err != nil {
		return err
	}
	if req.DryRun {
		return nil
	}

	if len(stmts) > 0 {
		if err := l.conn.ExecTx(ctx, stmts); err != nil {
			return errors.Wrap(err, "apply schema changes")
		}
	}
	if len(cols) == 0 {
		return nil
	}
	n, err := l.conn.InsertRows(ctx, rep.Table, cols, rows)
	if err != nil {
		return errors.Wrap(err, "insert rows")
	}
	rep.RowsLoaded = n
	return nil
}

func (l *Loader) reconcile(ctx context.Context, incoming schema.ColumnSet, current []schema.Column, rep *Report) error {
	existing, err := schema.NewColumnSet(current...)
	if err != nil {
		return errors.Wrap(err, "existing columns")
	}
	diff, err := reconcile.ComputeDiff(existing, incoming)
	if err != nil {
		return err
	}
	rep.Diff = diff

	decision := reconcile.Decision{}
	if diff.HasConflicts() {
		if l.decider == nil {
			return errors.Errorf("%d conflicting column(s) and no decider", len(diff.Conflicts()))
		}
		decision, err = l.decider.Decide(ctx, rep.Table, diff)
		if err != nil {
			if errors.Is(err, ErrSkipped) {
				return err
			}
			return errors.Wrap(err, "decide")
		}
	}
	rep.Decision = decision

	muts, err := reconcile.ApplyDecision(diff, decision)
	if err != nil {
		return err
	}
	targets, err := reconcile.Targets(diff, decision)
	if err != nil {
		return err
	}
	rep.Mutations = muts
	rep.Targets = targets
	return nil
}

func (l *Loader) record(rep *Report, err error) {
	if l.journal == nil {
		return
	}
	muts := make([]string, len(rep.Mutations))
	for i, m := range rep.Mutations {
		muts[i] = m.String()
	}
	e := audit.Entry{
		Kind:       audit.KindLoad,
		RunID:      rep.RunID,
		Table:      rep.Table,
		Source:     rep.Source,
		Mutations:  muts,
		DurationMS: rep.Duration.Milliseconds(),
		RowCount:   rep.RowsLoaded,
	}
	if l.conn != nil {
		e.Adapter = l.conn.AdapterName()
		e.DatabaseName = l.conn.DatabaseName()
	}
	if rep.DryRun {
		e.Query = "-- dry run\n" + strings.Join(rep.Statements, ";\n")
	}
	if err != nil {
		e.Error = err.Error()
		e.IsError = !errors.Is(err, ErrSkipped)
	}
	l.journal.Log(e)
}

// skipped lists the incoming columns absent from targets, in file order.
func skipped(incoming schema.ColumnSet, targets map[string]string) []string {
	var out []string
	for _, name := range incoming.Names() {
		if _, ok := targets[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
