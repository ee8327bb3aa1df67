//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/sadopc/chatsheet/internal/adapter"
	"github.com/sadopc/chatsheet/internal/schema"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func init() {
	adapter.Register(&disabledAdapter{})
}

type disabledAdapter struct{}

func (d *disabledAdapter) Name() string     { return "duckdb" }
func (d *disabledAdapter) DefaultPort() int { return 0 }

func (d *disabledAdapter) Connect(_ context.Context, _ string) (adapter.Connection, error) {
	return nil, errDisabled
}

// disabledConnection is never instantiated but satisfies the interface at compile time.
var _ adapter.Connection = (*disabledConnection)(nil)

type disabledConnection struct{}

func (c *disabledConnection) Tables(_ context.Context) ([]schema.Table, error) {
	return nil, errDisabled
}
func (c *disabledConnection) Columns(_ context.Context, _ string) ([]schema.Column, error) {
	return nil, errDisabled
}
func (c *disabledConnection) LookupTable(_ context.Context, _ string) (string, bool, error) {
	return "", false, errDisabled
}
func (c *disabledConnection) Execute(_ context.Context, _ string) (*adapter.QueryResult, error) {
	return nil, errDisabled
}
func (c *disabledConnection) ExecTx(_ context.Context, _ []string) error { return errDisabled }
func (c *disabledConnection) InsertRows(_ context.Context, _ string, _ []string, _ [][]any) (int64, error) {
	return 0, errDisabled
}
func (c *disabledConnection) Dialect() adapter.Dialect     { return Dialect }
func (c *disabledConnection) Cancel() error                { return errDisabled }
func (c *disabledConnection) Ping(_ context.Context) error { return errDisabled }
func (c *disabledConnection) Close() error                 { return errDisabled }
func (c *disabledConnection) DatabaseName() string         { return "" }
func (c *disabledConnection) AdapterName() string          { return "duckdb" }
