package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/chatsheet/internal/adapter"
	_ "github.com/sadopc/chatsheet/internal/adapter/sqlite"
	"github.com/sadopc/chatsheet/internal/audit"
	"github.com/sadopc/chatsheet/internal/history"
	"github.com/sadopc/chatsheet/internal/llm"
	"github.com/sadopc/chatsheet/internal/reconcile"
	"github.com/sadopc/chatsheet/internal/ui/decide"
)

type fakeTranslator struct {
	tr       llm.Translation
	err      error
	question string
	schema   string
}

func (f *fakeTranslator) Translate(_ context.Context, question, schemaContext string) (*llm.Translation, error) {
	f.question, f.schema = question, schemaContext
	if f.err != nil {
		return nil, f.err
	}
	tr := f.tr
	return &tr, nil
}

type fixture struct {
	s       *Session
	out     *bytes.Buffer
	conn    adapter.Connection
	hist    *history.History
	journal string
	dir     string
}

// newFixture builds a session over an in-memory SQLite database whose input
// is script.
func newFixture(t *testing.T, script string, mod func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()
	conn, err := adapter.Registry["sqlite"].Connect(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	dir := t.TempDir()
	hist, err := history.Open(ctx, filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	journalPath := filepath.Join(dir, "audit.jsonl")
	journal, err := audit.Open(journalPath, 0)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	out := &bytes.Buffer{}
	opts := Options{
		Conn:    conn,
		In:      decide.Lines(strings.NewReader(script)),
		Out:     out,
		History: hist,
		Journal: journal,
	}
	if mod != nil {
		mod(&opts)
	}
	return &fixture{s: New(opts), out: out, conn: conn, hist: hist, journal: journalPath, dir: dir}
}

func (f *fixture) handle(t *testing.T, lines ...string) string {
	t.Helper()
	f.out.Reset()
	for _, l := range lines {
		f.s.Handle(context.Background(), l)
	}
	return f.out.String()
}

func (f *fixture) writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const productsCSV = "id,name,price\n1,apple,1.5\n2,pear,2\n"

func TestRun_StopsAtExit(t *testing.T) {
	f := newFixture(t, "help\nexit\nquery CREATE TABLE t (a INTEGER)\n", nil)
	require.NoError(t, f.s.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Connected to sqlite")
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "describe <table>")
	assert.Contains(t, out, Prompt)

	tables, err := f.conn.Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables, "commands after exit must not run")
}

func TestRun_EndOfInput(t *testing.T) {
	f := newFixture(t, "tables", nil)
	require.NoError(t, f.s.Run(context.Background()))
	assert.Contains(t, f.out.String(), "No tables found in the database.")
}

func TestHandle_QuitAliases(t *testing.T) {
	f := newFixture(t, "", nil)
	for _, cmd := range []string{"exit", "QUIT", `\q`} {
		assert.True(t, f.s.Handle(context.Background(), cmd), cmd)
	}
	assert.False(t, f.s.Handle(context.Background(), "   "))
}

func TestHandle_UnknownCommand(t *testing.T) {
	f := newFixture(t, "", nil)
	out := f.handle(t, "tabels")
	assert.Contains(t, out, "Unknown command: tabels")
	assert.Contains(t, out, `Did you mean "tables"?`)

	out = f.handle(t, "zzzz")
	assert.Contains(t, out, "Unknown command: zzzz")
	assert.NotContains(t, out, "Did you mean")
}

func TestLoad_CreatesTableAndPreviews(t *testing.T) {
	f := newFixture(t, "", nil)
	path := f.writeCSV(t, "products.csv", productsCSV)

	out := f.handle(t, "load "+path+" products")
	assert.Contains(t, out, `Created table "products" with 3 columns`)
	assert.Contains(t, out, `Loaded 2 rows into "products"`)
	assert.Contains(t, out, "CREATE TABLE")
	assert.Contains(t, out, "apple")
	assert.Contains(t, out, "pear")

	out = f.handle(t, "list tables")
	assert.Contains(t, out, "products")

	out = f.handle(t, "describe PRODUCTS")
	assert.Contains(t, out, "price")
	assert.Contains(t, out, "REAL")

	out = f.handle(t, "describe prodcts")
	assert.Contains(t, out, `table "prodcts" not found. Did you mean "products"?`)

	entries, err := audit.ReadAll(f.journal)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.KindLoad, entries[0].Kind)
}

func TestLoad_DryRun(t *testing.T) {
	f := newFixture(t, "", nil)
	path := f.writeCSV(t, "products.csv", productsCSV)

	out := f.handle(t, "load "+path+" products --dry-run")
	assert.Contains(t, out, "Statements that would run:")
	assert.Contains(t, out, "Dry run: nothing was changed.")

	_, exists, err := f.conn.LookupTable(context.Background(), "products")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoad_ConflictWithPolicy(t *testing.T) {
	f := newFixture(t, "", func(o *Options) {
		o.Decider = decide.Policy{Action: reconcile.ActionSkip}
	})
	f.handle(t, "query CREATE TABLE products (id INTEGER, name TEXT)")
	path := f.writeCSV(t, "products.csv", productsCSV)

	out := f.handle(t, "load "+path+" products")
	assert.Contains(t, out, "Skipped columns: price")
	assert.Contains(t, out, `Loaded 2 rows into "products"`)
}

func TestLoad_PromptSharesInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(productsCSV), 0o644))

	f := newFixture(t, "load "+path+" products\nq\ntables\n", nil)
	f.handle(t, "query CREATE TABLE products (id INTEGER, name TEXT)")
	f.out.Reset()
	require.NoError(t, f.s.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, `Column "price" (REAL) is not in the table.`)
	assert.Contains(t, out, `Load into "products" skipped.`)
	assert.Contains(t, out, "Tables:")
}

func TestLoad_Usage(t *testing.T) {
	f := newFixture(t, "", nil)
	out := f.handle(t, "load only-one-arg")
	assert.Contains(t, out, "usage: load <csv> <table>")

	out = f.handle(t, "load /does/not/exist.csv t")
	assert.Contains(t, out, "Error:")
}

func TestQuery_RecordsHistoryAndAudit(t *testing.T) {
	f := newFixture(t, "", nil)
	out := f.handle(t,
		"query CREATE TABLE t (n INTEGER)",
		"query INSERT INTO t VALUES (1), (2), (3)",
		"query SELECT n FROM t ORDER BY n",
		"query SELECT * FROM missing",
	)
	assert.Contains(t, out, "(3 rows")
	assert.Contains(t, out, "Error:")
	require.NotNil(t, f.s.Last())
	assert.Len(t, f.s.Last().Rows, 3)

	entries, err := f.hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.True(t, entries[0].IsError)
	assert.Equal(t, "SELECT * FROM missing", entries[0].Query)
	assert.Equal(t, int64(3), entries[1].RowCount)
	assert.Equal(t, "sqlite", entries[1].Adapter)

	journal, err := audit.ReadAll(f.journal)
	require.NoError(t, err)
	require.Len(t, journal, 4)
	assert.Equal(t, audit.KindQuery, journal[3].Kind)
	assert.True(t, journal[3].IsError)
	assert.NotEmpty(t, journal[3].Error)
}

func TestQuery_MaxRows(t *testing.T) {
	f := newFixture(t, "", nil)
	f.s.cfg.Results.MaxRows = 2
	out := f.handle(t,
		"query CREATE TABLE t (n INTEGER)",
		"query INSERT INTO t VALUES (1), (2), (3)",
		"query SELECT n FROM t",
	)
	assert.Contains(t, out, "(showing 2 of 3 rows")
}

func TestAsk_RunsGeneratedQuery(t *testing.T) {
	tr := &fakeTranslator{tr: llm.Translation{
		SQL:         "SELECT name FROM products ORDER BY id",
		Explanation: "Lists product names.",
	}}
	f := newFixture(t, "", func(o *Options) { o.Translator = tr })
	f.handle(t, "load "+f.writeCSV(t, "p.csv", productsCSV)+" products")

	out := f.handle(t, "ask what do we sell?")
	assert.Equal(t, "what do we sell?", tr.question)
	assert.Contains(t, tr.schema, "- products (id INTEGER, name TEXT, price REAL)")
	assert.Contains(t, out, "SQL Query:")
	assert.Contains(t, out, "Lists product names.")
	assert.Contains(t, out, "apple")

	entries, err := f.hist.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.KindAsk, entries[0].Kind)
	assert.Equal(t, "what do we sell?", entries[0].Prompt)
}

func TestAsk_ConfirmsWrites(t *testing.T) {
	tr := &fakeTranslator{tr: llm.Translation{SQL: "DELETE FROM products"}}
	f := newFixture(t, "n\ny\n", func(o *Options) { o.Translator = tr })
	f.handle(t, "load "+f.writeCSV(t, "p.csv", productsCSV)+" products")

	out := f.handle(t, "ask remove everything")
	assert.Contains(t, out, "Not executed.")
	res, err := f.conn.Execute(context.Background(), "SELECT count(*) FROM products")
	require.NoError(t, err)
	assert.Equal(t, "2", res.Rows[0][0])

	f.handle(t, "ask remove everything")
	res, err = f.conn.Execute(context.Background(), "SELECT count(*) FROM products")
	require.NoError(t, err)
	assert.Equal(t, "0", res.Rows[0][0])
}

func TestAsk_Errors(t *testing.T) {
	f := newFixture(t, "", nil)
	assert.Contains(t, f.handle(t, "ask anything"), "no API key")
	assert.Contains(t, f.handle(t, "ask"), "usage: ask <question>")

	f = newFixture(t, "", func(o *Options) { o.TranslatorErr = errors.New("bad base url") })
	assert.Contains(t, f.handle(t, "ask anything"), "bad base url")

	f = newFixture(t, "", func(o *Options) { o.Translator = &fakeTranslator{err: llm.ErrEmptyResponse} })
	assert.Contains(t, f.handle(t, "ask anything"), "empty response")
}

func TestExport(t *testing.T) {
	f := newFixture(t, "", nil)
	path := filepath.Join(f.dir, "out.json")

	assert.Contains(t, f.handle(t, "export json "+path), "no results to export")

	f.handle(t,
		"query CREATE TABLE t (n INTEGER, s TEXT)",
		"query INSERT INTO t VALUES (1, 'a')",
		"query SELECT n, s FROM t",
	)
	out := f.handle(t, "export json "+path)
	assert.Contains(t, out, "Exported 1 rows")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\"n\": \"1\", \"s\": \"a\"}\n]\n", string(data))

	assert.Contains(t, f.handle(t, "export xml "+path), "Error:")
	assert.Contains(t, f.handle(t, "export csv"), "usage: export")
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t, "", nil)
	f.handle(t,
		"query CREATE TABLE fruit (name TEXT)",
		"query INSERT INTO fruit VALUES ('apple')",
		"query SELECT name FROM fruit",
	)

	out := f.handle(t, "history")
	assert.Contains(t, out, "CREATE TABLE fruit")
	assert.Contains(t, out, "SELECT name FROM fruit")

	out = f.handle(t, "history 1")
	assert.Contains(t, out, "SELECT name FROM fruit")
	assert.NotContains(t, out, "CREATE TABLE")

	out = f.handle(t, "history search INSERT")
	assert.Contains(t, out, "INSERT INTO fruit")
	assert.NotContains(t, out, "SELECT name")

	assert.Contains(t, f.handle(t, "history nope"), "usage: history")
	assert.Contains(t, f.handle(t, "history clear"), "History cleared.")
	assert.Contains(t, f.handle(t, "history"), "No history yet.")

	f = newFixture(t, "", func(o *Options) { o.History = nil })
	assert.Contains(t, f.handle(t, "history"), "History is disabled.")
}

func TestHistoryCommand_SearchIsLiteral(t *testing.T) {
	f := newFixture(t, "", nil)
	f.handle(t,
		"query SELECT 'a_b' AS v",
		"query SELECT 'axb' AS v",
	)

	out := f.handle(t, "history search a_b")
	assert.Contains(t, out, "'a_b'")
	assert.NotContains(t, out, "'axb'")

	assert.Contains(t, f.handle(t, "history search %"), "No history yet.")
}

func TestHistoryCommand_RecordsLoads(t *testing.T) {
	f := newFixture(t, "", nil)
	path := f.writeCSV(t, "pets.csv", "name,age\nrex,3\ntom,5\n")
	f.handle(t, "load "+path+" pets", "load "+path+" pets --dry-run")

	out := f.handle(t, "history")
	assert.Contains(t, out, "load "+path+" pets (2 rows)")
	assert.Equal(t, 1, strings.Count(out, "load "+path))
}

func TestSplitArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, splitArgs(`a  "b c" d`))
	assert.Equal(t, []string{""}, splitArgs(`""`))
	assert.Nil(t, splitArgs("   "))
}

func TestSuggest(t *testing.T) {
	names := commandNames()
	assert.Equal(t, "describe", suggest("descrbe", names))
	assert.Equal(t, "query", suggest("qurey", names))
	assert.Equal(t, "", suggest("zzz", names))
	assert.Equal(t, "Orders", suggest("ordrs", []string{"customers", "Orders"}))
}
