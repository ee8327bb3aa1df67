package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Theme != "default" {
		t.Errorf("Theme = %q, want %q", cfg.Theme, "default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" {
		t.Errorf("LLM.Model = %q, want gpt-3.5-turbo", cfg.LLM.Model)
	}
	if cfg.LLM.MaxTokens != 300 || cfg.LLM.Temperature != 0 {
		t.Errorf("LLM = %+v, want max_tokens 300 temperature 0", cfg.LLM)
	}
	if !cfg.LLM.ConfirmWrites {
		t.Error("LLM.ConfirmWrites = false, want true")
	}
	if cfg.Load.PreviewRows != 5 {
		t.Errorf("Load.PreviewRows = %d, want 5", cfg.Load.PreviewRows)
	}
	if cfg.Results.MaxRows != 10 {
		t.Errorf("Results.MaxRows = %d, want 10", cfg.Results.MaxRows)
	}
	if !cfg.Audit.Enabled || !cfg.History.Enabled {
		t.Errorf("Audit/History enabled = %v/%v, want true/true", cfg.Audit.Enabled, cfg.History.Enabled)
	}
	if len(cfg.Connections) != 0 {
		t.Errorf("Connections length = %d, want 0", len(cfg.Connections))
	}
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `theme: monokai
log:
  level: debug
  console: true
  file: /tmp/chatsheet.log
llm:
  model: gpt-4o-mini
  base_url: http://localhost:8080/v1
  max_tokens: 500
  confirm_writes: false
load:
  sample_rows: 100
  delimiter: ";"
  rename_suffix: _csv
results:
  max_rows: 25
  max_column_width: 80
audit:
  enabled: false
connections:
  - name: mydb
    adapter: postgres
    host: db.example.com
    port: 5432
    user: admin
    password: secret
    database: production
  - name: localfile
    adapter: sqlite
    file: /tmp/test.db
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Theme != "monokai" {
		t.Errorf("Theme = %q, want %q", cfg.Theme, "monokai")
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Console || cfg.Log.File != "/tmp/chatsheet.log" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.BaseURL != "http://localhost:8080/v1" || cfg.LLM.MaxTokens != 500 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.ConfirmWrites {
		t.Error("LLM.ConfirmWrites = true, want false")
	}
	if cfg.LLM.KeyEnv != "OPENAI_API_KEY" {
		t.Errorf("LLM.KeyEnv = %q, want default", cfg.LLM.KeyEnv)
	}
	if cfg.Load.SampleRows != 100 || cfg.Load.DelimiterRune() != ';' || cfg.Load.RenameSuffix != "_csv" {
		t.Errorf("Load = %+v", cfg.Load)
	}
	if cfg.Load.PreviewRows != 5 {
		t.Errorf("Load.PreviewRows = %d, want default 5", cfg.Load.PreviewRows)
	}
	if cfg.Results.MaxRows != 25 || cfg.Results.MaxColumnWidth != 80 {
		t.Errorf("Results = %+v", cfg.Results)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled = true, want false")
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("Connections length = %d, want 2", len(cfg.Connections))
	}

	c := cfg.Connections[0]
	if c.Name != "mydb" || c.Adapter != "postgres" || c.Host != "db.example.com" ||
		c.Port != 5432 || c.User != "admin" || c.Password != "secret" || c.Database != "production" {
		t.Errorf("Connection[0] fields mismatch: %+v", c)
	}

	got, ok := cfg.Connection("LOCALFILE")
	if !ok || got.File != "/tmp/test.db" {
		t.Errorf("Connection(LOCALFILE) = %+v, %v", got, ok)
	}
	if _, ok := cfg.Connection("nope"); ok {
		t.Error("Connection(nope) found, want missing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}

	def := DefaultConfig()
	if !reflect.DeepEqual(cfg, def) {
		t.Errorf("Load(missing) = %+v, want DefaultConfig %+v", cfg, def)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")

	content := "theme: [\ninvalid:\n  - {broken\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load(invalid YAML) error = nil, want error")
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "config.yaml")

	original := DefaultConfig()
	original.Theme = "light"
	original.LLM.Model = "gpt-4o"
	original.Load.SampleRows = 50
	original.Audit.Path = "/var/log/chatsheet.jsonl"
	original.Connections = []SavedConnection{
		{Name: "prod-pg", Adapter: "postgres", Host: "db.prod.internal", Port: 5433, User: "appuser", Password: "p@ss!", Database: "maindb"},
		{Name: "local-duck", Adapter: "duckdb", File: "/data/analytics.duckdb"},
	}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reflect.DeepEqual(original, loaded) {
		t.Errorf("roundtrip mismatch:\n  saved:  %+v\n  loaded: %+v", original, loaded)
	}
}

func TestSaveDefaultAndLoadDefault(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpHome, ".config"))

	cfg := DefaultConfig()
	cfg.Theme = "monokai"
	cfg.Results.MaxRows = 3

	if err := cfg.SaveDefault(); err != nil {
		t.Fatalf("SaveDefault() error = %v", err)
	}

	loaded, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if loaded.Theme != "monokai" {
		t.Errorf("Theme = %q, want monokai", loaded.Theme)
	}
	if loaded.Results != cfg.Results {
		t.Errorf("Results = %+v, want %+v", loaded.Results, cfg.Results)
	}

	auditPath, err := loaded.AuditPath()
	if err != nil {
		t.Fatalf("AuditPath() error = %v", err)
	}
	if filepath.Base(auditPath) != "audit.jsonl" || filepath.Base(filepath.Dir(auditPath)) != "chatsheet" {
		t.Errorf("AuditPath() = %q", auditPath)
	}
	historyPath, err := loaded.HistoryPath()
	if err != nil {
		t.Fatalf("HistoryPath() error = %v", err)
	}
	if filepath.Base(historyPath) != "history.db" {
		t.Errorf("HistoryPath() = %q", historyPath)
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-default-env")
	t.Setenv("CHATSHEET_KEY", "from-custom-env")

	tests := []struct {
		name string
		cfg  LLMConfig
		want string
	}{
		{"explicit key wins", LLMConfig{Key: "inline", KeyEnv: "CHATSHEET_KEY"}, "inline"},
		{"custom env", LLMConfig{KeyEnv: "CHATSHEET_KEY"}, "from-custom-env"},
		{"default env", LLMConfig{}, "from-default-env"},
		{"unset env", LLMConfig{KeyEnv: "CHATSHEET_UNSET_KEY"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.APIKey(); got != tt.want {
				t.Errorf("APIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDelimiterRune(t *testing.T) {
	tests := []struct {
		in   string
		want rune
	}{
		{"", ','},
		{",", ','},
		{";", ';'},
		{"|", '|'},
		{`\t`, '\t'},
		{"\t", '\t'},
	}
	for _, tt := range tests {
		if got := (LoadConfig{Delimiter: tt.in}).DelimiterRune(); got != tt.want {
			t.Errorf("DelimiterRune(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		conn SavedConnection
		want string
	}{
		{
			name: "postgres all fields",
			conn: SavedConnection{Adapter: "postgres", User: "admin", Password: "secret", Host: "db.example.com", Port: 5432, Database: "mydb"},
			want: "admin:secret@db.example.com:5432/mydb",
		},
		{
			name: "user without password",
			conn: SavedConnection{Adapter: "postgres", User: "readonly", Host: "db.example.com", Port: 5432, Database: "mydb"},
			want: "readonly@db.example.com:5432/mydb",
		},
		{
			name: "explicit DSN wins",
			conn: SavedConnection{Adapter: "mysql", DSN: "root:pass@tcp(localhost:3306)/db", Host: "ignored"},
			want: "root:pass@tcp(localhost:3306)/db",
		},
		{
			name: "defaults host to localhost",
			conn: SavedConnection{Adapter: "postgres"},
			want: "localhost",
		},
		{
			name: "sqlite uppercase adapter",
			conn: SavedConnection{Adapter: "SQLite", File: "/tmp/test.db"},
			want: "/tmp/test.db",
		},
		{
			name: "duckdb file",
			conn: SavedConnection{Adapter: "duckdb", File: "/data/analytics.duckdb"},
			want: "/data/analytics.duckdb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conn.BuildDSN(); got != tt.want {
				t.Errorf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayString(t *testing.T) {
	tests := []struct {
		name string
		conn SavedConnection
		want string
	}{
		{
			name: "network full",
			conn: SavedConnection{Adapter: "postgres", Host: "db.example.com", Port: 5432, Database: "mydb"},
			want: "postgres://db.example.com:5432/mydb",
		},
		{
			name: "network no database",
			conn: SavedConnection{Adapter: "mysql", Host: "mysql.local", Port: 3306},
			want: "mysql://mysql.local:3306",
		},
		{
			name: "sqlite falls back to DSN",
			conn: SavedConnection{Adapter: "sqlite", DSN: "/tmp/fallback.db"},
			want: "sqlite:///tmp/fallback.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conn.DisplayString(); got != tt.want {
				t.Errorf("DisplayString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if filepath.Base(dir) != "chatsheet" {
		t.Errorf("ConfigDir() base = %q, want %q", filepath.Base(dir), "chatsheet")
	}
}
