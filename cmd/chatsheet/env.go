package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/app"
	"github.com/sadopc/chatsheet/internal/audit"
	"github.com/sadopc/chatsheet/internal/config"
	"github.com/sadopc/chatsheet/internal/history"
	"github.com/sadopc/chatsheet/internal/llm"
	"github.com/sadopc/chatsheet/internal/loader"
	"github.com/sadopc/chatsheet/internal/logging"
	"github.com/sadopc/chatsheet/internal/theme"
	"github.com/sadopc/chatsheet/internal/ui/decide"
)

// env is everything a command needs: configuration, logging, the history
// store, the audit journal and an open connection.
type env struct {
	cfg     *config.Config
	logger  zerolog.Logger
	hist    *history.History
	journal *audit.Journal
	conn    adapter.Connection
	lines   decide.LineReader
	closers []func()
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.config != "" {
		return config.Load(o.config)
	}
	return config.LoadDefault()
}

// open builds the environment. History and audit failures are warnings;
// configuration errors are fatal, and so are connection errors when
// requireConn is set. Without it a missing database leaves e.conn nil.
func (o *rootOptions) open(cmd *cobra.Command, stdin io.Reader, requireConn bool) (*env, error) {
	ctx := contextOf(cmd)
	stderr := cmd.ErrOrStderr()

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.console {
		cfg.Log.Console = true
	}

	logger, closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	e := &env{cfg: cfg, logger: logger, lines: decide.Lines(stdin)}
	e.closers = append(e.closers, closeLog)

	if cfg.History.Enabled {
		var hist *history.History
		if cfg.History.Path == "" {
			hist, err = history.New(ctx)
		} else {
			hist, err = history.Open(ctx, cfg.History.Path)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Warning: could not open history: %v\n", err)
		} else {
			e.hist = hist
			e.closers = append(e.closers, func() { _ = hist.Close() })
		}
	}

	if cfg.Audit.Enabled {
		path, err := cfg.AuditPath()
		if err == nil {
			e.journal, err = audit.Open(path, cfg.Audit.MaxSizeMB)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Warning: could not open audit log: %v\n", err)
		} else {
			e.closers = append(e.closers, func() { _ = e.journal.Close() })
		}
	}

	adapterName, dsn, err := o.resolve(cfg)
	if err != nil && !requireConn {
		return e, nil
	}
	if err != nil {
		e.Close()
		return nil, err
	}
	a, ok := adapter.Registry[adapterName]
	if !ok {
		e.Close()
		return nil, fmt.Errorf("unknown adapter: %s (available: %s)", adapterName, strings.Join(adapterNames(), ", "))
	}
	conn, err := a.Connect(ctx, dsn)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("connect to %s: %w", adapterName, err)
	}
	e.conn = conn
	e.closers = append(e.closers, func() { _ = conn.Close() })
	logger.Debug().
		Str("adapter", adapterName).
		Str("dsn", audit.SanitizeDSN(dsn)).
		Msg("connected")
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// session builds a chat session on e. decider may be nil for the default
// prompt.
func (e *env) session(out io.Writer, decider loader.Decider) *app.Session {
	opts := app.Options{
		Conn:    e.conn,
		Config:  e.cfg,
		In:      e.lines,
		Out:     out,
		Decider: decider,
		History: e.hist,
		Journal: e.journal,
		Logger:  e.logger,
		Theme:   theme.Get(e.cfg.Theme),
	}
	dialect := "SQL"
	if e.conn != nil {
		dialect = e.conn.Dialect().Name()
	}
	tr, err := llm.NewOpenAI(e.cfg.LLM, dialect, e.logger)
	if err != nil {
		opts.TranslatorErr = err
	} else {
		opts.Translator = tr
	}
	return app.New(opts)
}

// resolve picks the adapter and DSN from, in order: a saved connection, an
// explicit DSN, and the individual connection flags.
func (o *rootOptions) resolve(cfg *config.Config) (adapterName, dsn string, err error) {
	if o.connection != "" {
		sc, ok := cfg.Connection(o.connection)
		if !ok {
			return "", "", fmt.Errorf("no saved connection named %q", o.connection)
		}
		return strings.ToLower(sc.Adapter), savedDSN(sc), nil
	}

	if o.dsn != "" {
		adapterName = detectAdapter(o.dsn)
		dsn = o.dsn
	}
	if o.adapter != "" {
		adapterName = o.adapter
	}
	if adapterName == "" && o.file != "" {
		adapterName = detectAdapter(o.file)
		if adapterName == "" {
			adapterName = "sqlite"
		}
	}
	if dsn == "" && adapterName != "" {
		dsn = buildDSN(adapterName, o.host, o.port, o.user, o.password, o.database, o.file)
	}
	if adapterName == "" || dsn == "" {
		return "", "", fmt.Errorf("no database given: pass a DSN, --file, --adapter or --connection")
	}
	return adapterName, dsn, nil
}

// savedDSN turns a saved connection into a driver DSN. Network adapters
// without an explicit DSN go through buildDSN, which knows each driver's
// format.
func savedDSN(sc config.SavedConnection) string {
	name := strings.ToLower(sc.Adapter)
	if sc.DSN != "" || name == "sqlite" || name == "duckdb" {
		return sc.BuildDSN()
	}
	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	return buildDSN(name, host, sc.Port, sc.User, sc.Password, sc.Database, sc.File)
}

func detectAdapter(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case strings.HasPrefix(lower, "duckdb://"):
		return "duckdb"
	case strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	case strings.HasSuffix(lower, ".duckdb"):
		return "duckdb"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	case lower == ":memory:":
		return "sqlite"
	}
	if strings.Contains(dsn, "@") {
		return "postgres"
	}
	return ""
}

func buildDSN(adapterName, host string, port int, user, password, database, file string) string {
	switch adapterName {
	case "postgres":
		u := &url.URL{Scheme: "postgres", Host: host}
		if user != "" {
			if password != "" {
				u.User = url.UserPassword(user, password)
			} else {
				u.User = url.User(user)
			}
		}
		if port > 0 {
			u.Host = fmt.Sprintf("%s:%d", host, port)
		}
		if database != "" {
			u.Path = "/" + database
		}
		return u.String()

	case "mysql":
		// user:pass@tcp(host:port)/db
		dsn := ""
		if user != "" {
			dsn += user
			if password != "" {
				dsn += ":" + url.PathEscape(password)
			}
			dsn += "@"
		}
		p := port
		if p == 0 {
			p = adapter.Registry["mysql"].DefaultPort()
		}
		dsn += fmt.Sprintf("tcp(%s:%d)", host, p)
		if database != "" {
			dsn += "/" + database
		}
		return dsn

	case "sqlite", "duckdb":
		if file != "" {
			return file
		}
		if database != "" {
			return database
		}
		return ":memory:"
	}
	return ""
}

// stdinFile returns r as an *os.File when it is one.
func stdinFile(r io.Reader) *os.File {
	f, _ := r.(*os.File)
	return f
}

// stdoutFile returns w as an *os.File when it is one.
func stdoutFile(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
