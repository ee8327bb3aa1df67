package audit

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindQuery Kind = "query"
	KindAsk   Kind = "ask"
	KindLoad  Kind = "load"
)

// Entry is a single journal record. Load entries carry the run id, the
// source file and the schema mutations applied to the target table.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Kind         Kind      `json:"kind"`
	RunID        string    `json:"run_id,omitempty"`
	Query        string    `json:"query,omitempty"`
	Prompt       string    `json:"prompt,omitempty"`
	Table        string    `json:"table,omitempty"`
	Source       string    `json:"source,omitempty"`
	Mutations    []string  `json:"mutations,omitempty"`
	Adapter      string    `json:"adapter"`
	DatabaseName string    `json:"database_name"`
	DurationMS   int64     `json:"duration_ms"`
	RowCount     int64     `json:"row_count"`
	IsError      bool      `json:"is_error"`
	Error        string    `json:"error,omitempty"`
}

// Journal appends JSON Lines entries to a file, rotating it to <path>.1
// once it grows past maxSizeMB.
type Journal struct {
	mu        sync.Mutex
	f         *os.File
	enc       *json.Encoder
	path      string
	maxSizeMB int
}

// Open creates parent directories (0o700) and opens path for appending
// (0o600). maxSizeMB <= 0 disables rotation.
func Open(path string, maxSizeMB int) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Journal{
		f:         f,
		enc:       json.NewEncoder(f),
		path:      path,
		maxSizeMB: maxSizeMB,
	}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Log appends e, stamping it with the current time when Timestamp is zero.
// It is safe for concurrent use and a no-op on a nil Journal.
func (j *Journal) Log(e Entry) {
	if j == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return
	}

	_ = j.enc.Encode(e)

	if j.maxSizeMB > 0 {
		j.rotateIfNeeded()
	}
}

// Close closes the underlying file. Close on a nil Journal is a no-op.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

func (j *Journal) rotateIfNeeded() {
	info, err := j.f.Stat()
	if err != nil {
		return
	}
	if info.Size() < int64(j.maxSizeMB)*1024*1024 {
		return
	}

	_ = j.f.Close()
	_ = os.Rename(j.path, j.path+".1")

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		j.f = nil
		return
	}
	j.f = f
	j.enc = json.NewEncoder(f)
}

// ReadAll decodes every entry in the journal file at path.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return entries, fmt.Errorf("audit: decode entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SanitizeDSN strips credentials from a DSN string.
func SanitizeDSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://", "mysql://", "duckdb://"} {
		if strings.HasPrefix(strings.ToLower(dsn), prefix) {
			u, err := url.Parse(dsn)
			if err != nil {
				return dsn
			}
			if u.User != nil {
				u.User = url.User("***")
			}
			return u.String()
		}
	}
	dsn = reMySQLCreds.ReplaceAllString(dsn, "***@tcp(")
	dsn = rePGPassword.ReplaceAllString(dsn, "password=***")
	return dsn
}

var (
	reMySQLCreds = regexp.MustCompile(`[^@]+@tcp\(`)
	rePGPassword = regexp.MustCompile(`password=[^\s]+`)
)
