package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
)

const configFile = ".pollexa/config.json"
const lockFile = ".pollexa/config.json.lock"

// Source kinds
const (
	SourceJSON   = "json"
	SourceSQLite = "sqlite"
)

// Defaults
const (
	DefaultDBPath    = ".pollexa/pollexa.db"
	DefaultLatency   = 500 * time.Millisecond
	DefaultPageTitle = "Discover"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Duration is a time.Duration that reads and writes as "500ms" in JSON and
// in environment variables
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	// Bare numbers are milliseconds
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	d.Duration = time.Duration(ms) * time.Millisecond
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the persisted pollexa configuration. Empty dataset and asset_dir
// mean the bundled dataset. A page_size of zero loads the whole feed at once.
type Config struct {
	Source    string   `json:"source,omitempty" env:"POLLEXA_SOURCE"`
	Dataset   string   `json:"dataset,omitempty" env:"POLLEXA_DATASET"`
	AssetDir  string   `json:"asset_dir,omitempty" env:"POLLEXA_ASSET_DIR"`
	DBPath    string   `json:"db_path,omitempty" env:"POLLEXA_DB_PATH"`
	Latency   Duration `json:"latency" env:"POLLEXA_LATENCY"`
	PageTitle string   `json:"page_title,omitempty" env:"POLLEXA_PAGE_TITLE"`
	LogLevel  string   `json:"log_level,omitempty" env:"POLLEXA_LOG_LEVEL"`
	LogFormat string   `json:"log_format,omitempty" env:"POLLEXA_LOG_FORMAT"`
	LogFile   string   `json:"log_file,omitempty" env:"POLLEXA_LOG_FILE"`
	Watch     bool     `json:"watch,omitempty" env:"POLLEXA_WATCH"`
	PageSize  int      `json:"page_size,omitempty" env:"POLLEXA_PAGE_SIZE"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Source:    SourceJSON,
		DBPath:    DefaultDBPath,
		Latency:   Duration{DefaultLatency},
		PageTitle: DefaultPageTitle,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}

// Path returns the config file location under baseDir
func Path(baseDir string) string {
	return filepath.Join(baseDir, configFile)
}

// Load reads the config from disk and applies POLLEXA_* environment
// overrides on top. A missing file yields the defaults.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(baseDir)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads only the file layer so that Update never persists
// environment overrides
func loadFile(baseDir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(baseDir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *Config) error {
	configPath := Path(baseDir)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, configPath)
}

// Update loads the file config, applies fn and saves the result while
// holding the config lock
func Update(baseDir string, fn func(*Config) error) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := loadFile(baseDir)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return Save(baseDir, cfg)
	})
}

// withConfigLock serializes access to config.json using flock
func withConfigLock(baseDir string, fn func() error) error {
	lockPath := filepath.Join(baseDir, lockFile)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// Validate checks enumerated values and ranges
func (c *Config) Validate() error {
	if c.Source != SourceJSON && c.Source != SourceSQLite {
		return fmt.Errorf("invalid source %q (expected %s or %s)", c.Source, SourceJSON, SourceSQLite)
	}
	if c.Latency.Duration < 0 {
		return fmt.Errorf("latency must not be negative")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q (expected text or json)", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
}

// Keys lists the settable keys in display order
func Keys() []string {
	return []string{"source", "dataset", "asset_dir", "db_path", "latency", "page_title", "log_level", "log_format", "log_file", "watch", "page_size"}
}

// Get returns the string form of a key
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "source":
		return c.Source, nil
	case "dataset":
		return c.Dataset, nil
	case "asset_dir":
		return c.AssetDir, nil
	case "db_path":
		return c.DBPath, nil
	case "latency":
		return c.Latency.String(), nil
	case "page_title":
		return c.PageTitle, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	case "log_file":
		return c.LogFile, nil
	case "watch":
		return strconv.FormatBool(c.Watch), nil
	case "page_size":
		return strconv.Itoa(c.PageSize), nil
	}
	return "", unknownKey(key)
}

// Set parses value into key. Values are checked by Validate afterwards.
func (c *Config) Set(key, value string) error {
	switch key {
	case "source":
		c.Source = value
	case "dataset":
		c.Dataset = value
	case "asset_dir":
		c.AssetDir = value
	case "db_path":
		c.DBPath = value
	case "latency":
		if err := c.Latency.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("latency: %w", err)
		}
	case "page_title":
		c.PageTitle = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "log_file":
		c.LogFile = value
	case "watch":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		c.Watch = b
	case "page_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("page_size: %w", err)
		}
		c.PageSize = n
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
}

// IsKey reports whether key is a known config key
func IsKey(key string) bool {
	return slices.Contains(Keys(), key)
}
