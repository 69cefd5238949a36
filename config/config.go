// Package config loads the hbnb configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/hbnb/horosafe"
	"github.com/hazyhaar/hbnb/storage"
)

// Snapshot backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Environment variables that override the file.
const (
	EnvSnapshot = "HBNB_SNAPSHOT"
	EnvLogLevel = "HBNB_LOG_LEVEL"
)

// Config holds the full hbnb configuration.
type Config struct {
	// DataDir, when set, roots the snapshot paths: they must be relative
	// and stay inside it.
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Watch    WatchConfig    `yaml:"watch"`
}

// SnapshotConfig selects where the snapshot lives.
type SnapshotConfig struct {
	Backend    string `yaml:"backend"` // file | sqlite
	Path       string `yaml:"path"`
	SQLitePath string `yaml:"sqlite_path"`
	MaxBytes   int64  `yaml:"max_bytes"`
}

// WatchConfig configures hot reload of the snapshot.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Snapshot: SnapshotConfig{
			Backend:    BackendFile,
			Path:       storage.DefaultPath,
			SQLitePath: "hbnb.db",
			MaxBytes:   storage.DefaultMaxBytes,
		},
		Watch: WatchConfig{
			Interval: time.Second,
			Debounce: 200 * time.Millisecond,
		},
	}
}

// LoadConfig reads and parses a YAML config file, runs overrides, then
// applies the environment. An empty path skips the file. Overrides see the
// file values and run before HBNB_SNAPSHOT is resolved against the backend.
func LoadConfig(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	for _, o := range overrides {
		o(cfg)
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from HBNB_* variables. HBNB_SNAPSHOT names the
// file or database depending on the selected backend.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSnapshot); v != "" {
		c.SetSnapshot(v)
	}
	c.LogLevel = env(EnvLogLevel, c.LogLevel)
}

// SetSnapshot points the selected backend at location. Select the backend
// first.
func (c *Config) SetSnapshot(location string) {
	if c.Snapshot.Backend == BackendSQLite {
		c.Snapshot.SQLitePath = location
		return
	}
	c.Snapshot.Path = location
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	switch c.Snapshot.Backend {
	case BackendFile:
		if c.Snapshot.Path == "" {
			return fmt.Errorf("snapshot.path is required")
		}
	case BackendSQLite:
		if c.Snapshot.SQLitePath == "" {
			return fmt.Errorf("snapshot.sqlite_path is required")
		}
	default:
		return fmt.Errorf("unsupported snapshot.backend %q (use %s or %s)",
			c.Snapshot.Backend, BackendFile, BackendSQLite)
	}
	if _, err := c.SnapshotLocation(); err != nil {
		return err
	}
	if c.Snapshot.MaxBytes < 0 {
		return fmt.Errorf("snapshot.max_bytes must be >= 0")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Watch.Enabled && c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be > 0")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0")
	}
	return nil
}

// Level returns the slog level named by LogLevel. Invalid values fall back
// to info; Validate reports them.
func (c *Config) Level() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", s)
}

// SnapshotLocation returns the file or database path of the selected
// backend, resolved against DataDir.
func (c *Config) SnapshotLocation() (string, error) {
	p := c.Snapshot.Path
	if c.Snapshot.Backend == BackendSQLite {
		p = c.Snapshot.SQLitePath
	}
	if c.DataDir == "" {
		return p, nil
	}
	resolved, err := horosafe.SafePath(c.DataDir, p)
	if err != nil {
		return "", fmt.Errorf("snapshot location %q outside data_dir: %w", p, err)
	}
	return resolved, nil
}

// OpenBackend builds the configured snapshot backend and the function that
// releases it.
func (c *Config) OpenBackend() (storage.Backend, func() error, error) {
	loc, err := c.SnapshotLocation()
	if err != nil {
		return nil, nil, err
	}
	switch c.Snapshot.Backend {
	case BackendSQLite:
		b, err := storage.OpenSQLiteBackend(loc)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case BackendFile:
		b := storage.NewFileBackend(loc)
		b.MaxBytes = c.Snapshot.MaxBytes
		return b, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unsupported snapshot.backend %q", c.Snapshot.Backend)
}

// WithBackend is a LoadConfig override selecting the snapshot backend. An
// empty name keeps the configured one.
func WithBackend(name string) func(*Config) {
	return func(c *Config) {
		if name != "" {
			c.Snapshot.Backend = name
		}
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
