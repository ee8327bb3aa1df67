package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Theme       string            `yaml:"theme"`
	Log         LogConfig         `yaml:"log"`
	LLM         LLMConfig         `yaml:"llm"`
	Load        LoadConfig        `yaml:"load"`
	Results     ResultsConfig     `yaml:"results"`
	Audit       AuditConfig       `yaml:"audit"`
	History     HistoryConfig     `yaml:"history"`
	Connections []SavedConnection `yaml:"connections"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	Console   bool   `yaml:"console"`
	File      string `yaml:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	Cleanup   bool   `yaml:"cleanup"` // truncate File on startup
}

// LLMConfig holds settings for the natural-language translator.
type LLMConfig struct {
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"base_url,omitempty"`
	Key           string  `yaml:"api_key,omitempty"`
	KeyEnv        string  `yaml:"api_key_env"`
	Temperature   float32 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	ConfirmWrites bool    `yaml:"confirm_writes"`
}

// APIKey returns the configured key, falling back to the KeyEnv
// environment variable.
func (l LLMConfig) APIKey() string {
	if l.Key != "" {
		return l.Key
	}
	env := l.KeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}

// LoadConfig holds defaults for CSV loading.
type LoadConfig struct {
	SampleRows   int    `yaml:"sample_rows"` // 0 samples every row
	Delimiter    string `yaml:"delimiter"`
	RenameSuffix string `yaml:"rename_suffix"`
	PreviewRows  int    `yaml:"preview_rows"`
}

// DelimiterRune returns the first rune of Delimiter, or ',' when unset or
// invalid.
func (l LoadConfig) DelimiterRune() rune {
	if l.Delimiter == "" {
		return ','
	}
	if l.Delimiter == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(l.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// ResultsConfig holds result display settings.
type ResultsConfig struct {
	MaxRows        int `yaml:"max_rows"`
	MaxColumnWidth int `yaml:"max_column_width"`
}

// AuditConfig controls the JSON Lines audit journal.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// HistoryConfig controls the command history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// SavedConnection holds parameters for a saved database connection.
type SavedConnection struct {
	Name     string `yaml:"name"`
	Adapter  string `yaml:"adapter"`
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	File     string `yaml:"file,omitempty"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Theme: "default",
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		LLM: LLMConfig{
			Model:         "gpt-3.5-turbo",
			KeyEnv:        "OPENAI_API_KEY",
			Temperature:   0,
			MaxTokens:     300,
			ConfirmWrites: true,
		},
		Load: LoadConfig{
			Delimiter:    ",",
			RenameSuffix: "_new",
			PreviewRows:  5,
		},
		Results: ResultsConfig{
			MaxRows:        10,
			MaxColumnWidth: 50,
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxSizeMB: 10,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the chatsheet configuration directory, typically
// ~/.config/chatsheet/.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(base, "chatsheet"), nil
}

// Load reads a Config from the YAML file at path. If the file does not exist,
// it returns DefaultConfig without error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from ConfigDir()/config.yaml.
func LoadDefault() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dir, "config.yaml"))
}

// Save writes the Config to the YAML file at path, creating any necessary
// parent directories.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveDefault writes the Config to ConfigDir()/config.yaml.
func (c *Config) SaveDefault() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return c.Save(filepath.Join(dir, "config.yaml"))
}

// AuditPath returns Audit.Path, or audit.jsonl inside ConfigDir when unset.
func (c *Config) AuditPath() (string, error) {
	return c.pathOr(c.Audit.Path, "audit.jsonl")
}

// HistoryPath returns History.Path, or history.db inside ConfigDir when unset.
func (c *Config) HistoryPath() (string, error) {
	return c.pathOr(c.History.Path, "history.db")
}

func (c *Config) pathOr(path, name string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Connection returns the saved connection with the given name.
func (c *Config) Connection(name string) (SavedConnection, bool) {
	for _, sc := range c.Connections {
		if strings.EqualFold(sc.Name, name) {
			return sc, true
		}
	}
	return SavedConnection{}, false
}

// BuildDSN constructs a connection string from the individual fields of a
// SavedConnection. If DSN is already set, it is returned as-is. For
// file-based adapters (sqlite, duckdb) it returns the File field. For
// network adapters it builds "user:password@host:port/database".
func (sc *SavedConnection) BuildDSN() string {
	if sc.DSN != "" {
		return sc.DSN
	}

	adapter := strings.ToLower(sc.Adapter)
	if adapter == "sqlite" || adapter == "duckdb" {
		return sc.File
	}

	var b strings.Builder

	if sc.User != "" {
		b.WriteString(sc.User)
		if sc.Password != "" {
			b.WriteByte(':')
			b.WriteString(sc.Password)
		}
		b.WriteByte('@')
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}
	b.WriteString(host)

	if sc.Port > 0 {
		fmt.Fprintf(&b, ":%d", sc.Port)
	}

	if sc.Database != "" {
		b.WriteByte('/')
		b.WriteString(sc.Database)
	}

	return b.String()
}

// DisplayString returns "adapter://host:port/database" for network adapters
// or "adapter://file" for file-based ones.
func (sc *SavedConnection) DisplayString() string {
	adapter := strings.ToLower(sc.Adapter)
	if adapter == "sqlite" || adapter == "duckdb" {
		file := sc.File
		if file == "" {
			file = sc.DSN
		}
		return fmt.Sprintf("%s://%s", sc.Adapter, file)
	}

	host := sc.Host
	if host == "" {
		host = "localhost"
	}

	location := host
	if sc.Port > 0 {
		location = fmt.Sprintf("%s:%d", host, sc.Port)
	}

	if sc.Database != "" {
		return fmt.Sprintf("%s://%s/%s", sc.Adapter, location, sc.Database)
	}
	return fmt.Sprintf("%s://%s", sc.Adapter, location)
}
