package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// StoreConfig selects where memorial days are persisted.
type StoreConfig struct {
	// Driver is "json" (single JSON document) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the JSON file or SQLite database path.
	Path string `yaml:"path" json:"path"`
}

// AIConfig configures the generative provider.
type AIConfig struct {
	// APIKey may be left empty; GEMINI_API_KEY or API_KEY is used then.
	APIKey         string `yaml:"api_key,omitempty" json:"-"`
	Model          string `yaml:"model" json:"model"`
	ImageModel     string `yaml:"image_model" json:"image_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// PosterConfig configures headless poster rendering.
type PosterConfig struct {
	Width          int     `yaml:"width" json:"width"`
	Scale          float64 `yaml:"scale" json:"scale"`
	SettleMillis   int     `yaml:"settle_ms" json:"settle_ms"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// TelegramConfig enables the daily digest push when Token and ChatID are set.
type TelegramConfig struct {
	Token      string `yaml:"token,omitempty" json:"-"`
	ChatID     int64  `yaml:"chat_id,omitempty" json:"chat_id,omitempty"`
	SendPoster bool   `yaml:"send_poster" json:"send_poster"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
// PasswordHash (Argon2id, see `auracal hash-password`) takes precedence
// over the plaintext Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" json:"-"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that decides "today" (e.g. "Asia/Shanghai").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string for the daily refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CountdownCount is how many nearest memorial days the page shows.
	CountdownCount int `yaml:"countdown_count" json:"countdown_count"`

	// CacheDir holds per-day provider results.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Store    StoreConfig    `yaml:"store" json:"store"`
	AI       AIConfig       `yaml:"ai" json:"ai"`
	Poster   PosterConfig   `yaml:"poster" json:"poster"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen    = "127.0.0.1:8080"
	defaultTimezone  = "Asia/Shanghai"
	defaultRefresh   = "5 0 * * *"
	defaultCacheDir  = "/var/lib/auracal/daily"
	defaultStorePath = "/var/lib/auracal/memorials.json"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CountdownCount <= 0 {
		c.CountdownCount = 2
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}

	switch c.Store.Driver {
	case "json", "sqlite":
		// ok
	default:
		c.Store.Driver = "json"
	}
	if c.Store.Path == "" {
		if c.Store.Driver == "sqlite" {
			c.Store.Path = "/var/lib/auracal/auracal.db"
		} else {
			c.Store.Path = defaultStorePath
		}
	}

	if c.AI.Model == "" {
		c.AI.Model = "gemini-3-flash-preview"
	}
	if c.AI.ImageModel == "" {
		c.AI.ImageModel = "gemini-2.5-flash-image"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 90
	}

	if c.Poster.Width <= 0 {
		c.Poster.Width = 380
	}
	if c.Poster.Scale <= 0 {
		c.Poster.Scale = 3
	}
	if c.Poster.SettleMillis <= 0 {
		c.Poster.SettleMillis = 200
	}
	if c.Poster.TimeoutSeconds <= 0 {
		c.Poster.TimeoutSeconds = 30
	}
}

// APIKey resolves the provider credential: config first, then the
// GEMINI_API_KEY and API_KEY environment variables.
func (c *Config) APIKey() string {
	if c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return v
	}
	return os.Getenv("API_KEY")
}

// TelegramEnabled reports whether the digest push is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}

// UseDevPaths rewrites the default /var/lib locations to ./cache for
// development runs (the -debug flag). Explicitly configured paths are kept.
func (c *Config) UseDevPaths() {
	if c.CacheDir == defaultCacheDir {
		c.CacheDir = "./cache/daily"
	}
	switch c.Store.Path {
	case defaultStorePath:
		c.Store.Path = "./cache/memorials.json"
	case "/var/lib/auracal/auracal.db":
		c.Store.Path = "./cache/auracal.db"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".auracal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
