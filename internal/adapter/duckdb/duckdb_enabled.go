//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/schema"
)

func init() {
	adapter.Register(&duckdbAdapter{})
}

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

type duckdbAdapter struct{}

func (a *duckdbAdapter) Name() string     { return "duckdb" }
func (a *duckdbAdapter) DefaultPort() int { return 0 }

func (a *duckdbAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	// Strip the "duckdb://" prefix if present.
	dsn = strings.TrimPrefix(dsn, "duckdb://")
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	return &duckdbConn{
		db:  db,
		dsn: dsn,
	}, nil
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

type duckdbConn struct {
	db  *sql.DB
	dsn string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *duckdbConn) DatabaseName() string     { return c.dsn }
func (c *duckdbConn) AdapterName() string      { return "duckdb" }
func (c *duckdbConn) Dialect() adapter.Dialect { return Dialect }

func (c *duckdbConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *duckdbConn) Close() error {
	return c.db.Close()
}

// Cancel cancels the currently running query, if any.
func (c *duckdbConn) Cancel() error {
	c.mu.Lock()
	fn := c.cancel
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

func (c *duckdbConn) Tables(ctx context.Context) ([]schema.Table, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: tables: %w", err)
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: tables scan: %w", err)
		}
		tables = append(tables, schema.Table{Name: name})
	}
	return tables, rows.Err()
}

func (c *duckdbConn) LookupTable(ctx context.Context, table string) (string, bool, error) {
	var name string
	err := c.db.QueryRowContext(ctx, `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND lower(table_name) = lower(?)
		ORDER BY table_name = ? DESC, table_name
		LIMIT 1`, table, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("duckdb: lookup table: %w", err)
	}
	return name, true, nil
}

func (c *duckdbConn) Columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, dtype, nullable, dflt string
		if err := rows.Scan(&name, &dtype, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("duckdb: columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Type:     dtype,
			DataType: Dialect.ParseType(dtype),
			Nullable: nullable == "YES",
			Default:  dflt,
		})
	}
	return cols, rows.Err()
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func (c *duckdbConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
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
			return nil, fmt.Errorf("duckdb: query: %w", err)
		}
		defer rows.Close()
		res, err := adapter.ScanResult(rows, start)
		if err != nil {
			return nil, fmt.Errorf("duckdb: %w", err)
		}
		return res, nil
	}

	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("duckdb: exec: %w", err)
	}
	return adapter.ExecResult(result, start), nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

func (c *duckdbConn) ExecTx(ctx context.Context, stmts []string) error {
	if err := adapter.ExecTx(ctx, c.db, stmts); err != nil {
		return fmt.Errorf("duckdb: %w", err)
	}
	return nil
}

func (c *duckdbConn) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := adapter.InsertRows(ctx, c.db, Dialect, adapter.QuestionMark, table, columns, rows)
	if err != nil {
		return 0, fmt.Errorf("duckdb: %w", err)
	}
	return n, nil
}
