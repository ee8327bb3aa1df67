// Package history keeps a SQLite log of the statements and questions run
// from chatsheet.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/sadopc/chatsheet/internal/config"
)

// Kind tells what produced an entry.
type Kind string

const (
	KindQuery Kind = "query"
	KindAsk   Kind = "ask"
	KindLoad  Kind = "load"
)

// Entry is one executed statement. Prompt holds the question for entries
// produced by ask.
type Entry struct {
	bun.BaseModel `bun:"table:history"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Kind         Kind      `bun:"kind,notnull,default:'query'"`
	Prompt       string    `bun:"prompt,notnull,default:''"`
	Query        string    `bun:"query,notnull"`
	Adapter      string    `bun:"adapter,notnull,default:''"`
	DatabaseName string    `bun:"database_name,notnull,default:''"`
	ExecutedAt   time.Time `bun:"executed_at,notnull"`
	DurationMS   int64     `bun:"duration_ms,notnull,default:0"`
	RowCount     int64     `bun:"row_count,notnull,default:0"`
	IsError      bool      `bun:"is_error,notnull,default:false"`
}

// History is a SQLite-backed history store.
type History struct {
	db *bun.DB
}

// New opens the history database at ConfigDir()/history.db.
func New(ctx context.Context) (*History, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("history: config dir: %w", err)
	}
	return Open(ctx, filepath.Join(dir, "history.db"))
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &History{db: db}, nil
}

func migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Entry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("history: create table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*Entry)(nil)).
		Index("history_executed_at_idx").
		Column("executed_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("history: create index: %w", err)
	}
	return nil
}

// Add inserts a new entry. A zero ExecutedAt is set to the current time.
func (h *History) Add(ctx context.Context, e Entry) error {
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}
	e.ExecutedAt = e.ExecutedAt.UTC()
	if e.Kind == "" {
		e.Kind = KindQuery
	}
	e.ID = 0
	if _, err := h.db.NewInsert().Model(&e).Exec(ctx); err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}

// likeEscape is the LIKE escape character used by Search patterns.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// Containing returns a Search pattern matching text literally anywhere in
// the query or prompt.
func Containing(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

// Search returns entries whose query or prompt matches the SQL LIKE
// pattern, most recent first. "!" escapes a literal "%", "_" or "!".
func (h *History) Search(ctx context.Context, pattern string, limit int) ([]Entry, error) {
	var entries []Entry
	err := h.recent(limit).
		Model(&entries).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("query LIKE ? ESCAPE '"+likeEscape+"'", pattern).
				WhereOr("prompt LIKE ? ESCAPE '"+likeEscape+"'", pattern)
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	return entries, nil
}

// Recent returns the most recent entries, limited to limit rows.
func (h *History) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	if err := h.recent(limit).Model(&entries).Scan(ctx); err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	return entries, nil
}

func (h *History) recent(limit int) *bun.SelectQuery {
	q := h.db.NewSelect().OrderExpr("executed_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// Clear deletes all entries.
func (h *History) Clear(ctx context.Context) error {
	if _, err := h.db.NewDelete().Model((*Entry)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}
