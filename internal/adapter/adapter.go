package adapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sadopc/chatsheet/internal/schema"
)

var (
	ErrNotConnected = errors.New("not connected to database")
	ErrCancelled    = errors.New("query cancelled")
)

// Adapter creates database connections.
type Adapter interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
	Name() string
	DefaultPort() int
}

// Connection represents an active database connection.
type Connection interface {
	// Introspection
	Tables(ctx context.Context) ([]schema.Table, error)
	Columns(ctx context.Context, table string) ([]schema.Column, error)
	// LookupTable finds table case-insensitively and returns its stored
	// name. An exact match wins over one differing only in case.
	LookupTable(ctx context.Context, table string) (name string, ok bool, err error)

	// Query execution
	Execute(ctx context.Context, query string) (*QueryResult, error)
	Cancel() error

	// Loading
	ExecTx(ctx context.Context, stmts []string) error
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Dialect() Dialect

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	AdapterName() string
}

// QueryResult holds the result of a query execution.
type QueryResult struct {
	Columns  []ColumnMeta
	Rows     [][]string
	RowCount int64 // -1 if unknown
	Duration time.Duration
	IsSelect bool
	Message  string
}

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name     string
	Type     string
	Nullable bool
}

// NullDisplay is how a NULL value appears in QueryResult rows.
const NullDisplay = "NULL"

// IsSelect reports whether query returns rows.
func IsSelect(query string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(stripLeadingComments(query)))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "SHOW", "DESC", "VALUES", "TABLE"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// stripLeadingComments removes leading "--" and "/* */" comments.
func stripLeadingComments(query string) string {
	q := strings.TrimSpace(query)
	for {
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = strings.TrimSpace(q[i+1:])
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q, "*/")
			if i < 0 {
				return ""
			}
			q = strings.TrimSpace(q[i+2:])
		default:
			return q
		}
	}
}

// Registry holds registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}
