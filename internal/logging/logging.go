// Package logging builds the zerolog logger shared by the CLI, the loader
// and the chat session.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"

	"github.com/sadopc/chatsheet/internal/config"
)

// backupLayout names rotated files as <file>.<timestamp>.
const backupLayout = "2006-01-02-15-04-05"

// Setup returns a logger writing to stderr (when cfg.Console is set) and to
// a JSON file with size rotation (when cfg.File is set). With neither it
// returns a disabled logger. The returned func closes the file.
func Setup(cfg config.LogConfig) (zerolog.Logger, func(), error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LogConfig, console io.Writer) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	closeFn := func() {}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen})
	}

	if cfg.File != "" {
		if cfg.Cleanup {
			if err := truncate(cfg.File); err != nil {
				return zerolog.Nop(), closeFn, err
			}
		}
		f, err := openRotating(cfg.File, cfg.MaxSizeMB)
		if err != nil {
			return zerolog.Nop(), closeFn, err
		}
		writers = append(writers, f)
		closeFn = func() { _ = f.Close() }
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closeFn, nil
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closeFn, nil
}

func truncate(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := os.Truncate(path, 0); err != nil {
		return errors.Wrap(err, "truncate log file")
	}
	return nil
}

// rotatingFile is an append-only file that moves itself aside once it
// reaches maxBytes.
type rotatingFile struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	size     int64
	maxBytes int64
	now      func() time.Time
}

func openRotating(path string, maxSizeMB int) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	r := &rotatingFile{
		path:     path,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		now:      time.Now,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "stat log file")
	}
	r.f = f
	r.size = info.Size()
	return nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return 0, errors.New("log file closed")
	}
	if r.maxBytes > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return errors.Wrap(err, "close log file")
	}
	backup := fmt.Sprintf("%s.%s", r.path, r.now().Format(backupLayout))
	if err := os.Rename(r.path, backup); err != nil {
		return errors.Wrap(err, "rotate log file")
	}
	return r.open()
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
