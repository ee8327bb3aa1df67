package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/schema"

	_ "modernc.org/sqlite"
)

func init() {
	adapter.Register(&sqliteAdapter{})
}

// sqliteAdapter implements adapter.Adapter for SQLite databases.
type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string     { return "sqlite" }
func (a *sqliteAdapter) DefaultPort() int { return 0 }

func (a *sqliteAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	dsn = normalizeDSN(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	dbName := dsn
	if dsn != ":memory:" {
		dbName = filepath.Base(dsn)
	}

	return &sqliteConn{
		db:     db,
		dsn:    dsn,
		dbName: dbName,
	}, nil
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	if strings.HasPrefix(dsn, "file:") {
		return strings.TrimPrefix(dsn, "file:")
	}
	return dsn
}

// sqliteConn implements adapter.Connection.
type sqliteConn struct {
	db     *sql.DB
	dsn    string
	dbName string

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

func (c *sqliteConn) AdapterName() string  { return "sqlite" }
func (c *sqliteConn) DatabaseName() string { return c.dbName }

func (c *sqliteConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}

func (c *sqliteConn) Dialect() adapter.Dialect { return Dialect }

// Tables returns all user tables in the database.
func (c *sqliteConn) Tables(ctx context.Context) ([]schema.Table, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("sqlite tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Name: name})
	}
	return tables, rows.Err()
}

func (c *sqliteConn) LookupTable(ctx context.Context, table string) (string, bool, error) {
	var name string
	err := c.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND lower(name) = lower(?) LIMIT 1", table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite lookup table: %w", err)
	}
	return name, true, nil
}

// Columns returns column metadata for the given table using PRAGMA table_info.
func (c *sqliteConn) Columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, "PRAGMA table_info("+Dialect.QuoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("sqlite columns scan: %w", err)
		}
		col := schema.Column{
			Name:     name,
			Type:     colType,
			DataType: Dialect.ParseType(colType),
			Nullable: notNull == 0,
			IsPK:     pk > 0,
		}
		if dfltValue.Valid {
			col.Default = dfltValue.String
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Execute runs a query and returns the result.
func (c *sqliteConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.cancelFn = nil
		c.mu.Unlock()
		cancel()
	}()

	start := time.Now()
	if adapter.IsSelect(query) {
		rows, err := c.db.QueryContext(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, adapter.ErrCancelled
			}
			return nil, fmt.Errorf("sqlite query: %w", err)
		}
		defer rows.Close()

		res, err := adapter.ScanResult(rows, start)
		if err != nil {
			if ctx.Err() != nil {
				return nil, adapter.ErrCancelled
			}
			return nil, fmt.Errorf("sqlite %w", err)
		}
		return res, nil
	}

	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("sqlite exec: %w", err)
	}
	return adapter.ExecResult(result, start), nil
}

// Cancel cancels any in-flight query.
func (c *sqliteConn) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFn != nil {
		c.cancelFn()
	}
	return nil
}

func (c *sqliteConn) ExecTx(ctx context.Context, stmts []string) error {
	if err := adapter.ExecTx(ctx, c.db, stmts); err != nil {
		return fmt.Errorf("sqlite %w", err)
	}
	return nil
}

// InsertRows stores time values as ISO 8601 text so they compare and sort
// the way SQLite's date functions expect. rows is not modified.
func (c *sqliteConn) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := adapter.InsertRows(ctx, c.db, Dialect, adapter.QuestionMark, table, columns, textTimes(rows))
	if err != nil {
		return 0, fmt.Errorf("sqlite %w", err)
	}
	return n, nil
}

// textTimes returns rows with time values formatted. Rows without one are
// shared with the input.
func textTimes(rows [][]any) [][]any {
	out := rows
	copied := false
	for r, row := range rows {
		var conv []any
		for i, v := range row {
			if ts, ok := v.(time.Time); ok {
				if conv == nil {
					conv = append([]any(nil), row...)
				}
				conv[i] = formatTime(ts)
			}
		}
		if conv == nil {
			continue
		}
		if !copied {
			out = append([][]any(nil), rows...)
			copied = true
		}
		out[r] = conv
	}
	return out
}

func formatTime(ts time.Time) string {
	if ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 && ts.Nanosecond() == 0 {
		return ts.Format("2006-01-02")
	}
	return ts.Format("2006-01-02 15:04:05")
}
