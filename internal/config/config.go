package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bellsched/internal/model"
)

// Environment variables that override the file. Secrets and deployment
// URLs usually live here rather than in the YAML.
const (
	EnvCalendarURL   = "IMPORT_CALENDAR_URL"
	EnvRedisURL      = "REDIS_URL"
	EnvAIAPIKey      = "AI_API_KEY"
	EnvAIBaseURL     = "AI_BASE_URL"
	EnvAIModel       = "AI_MODEL"
	EnvRevalidateURL = "REVALIDATE_URL"
)

// SchoolYearConfig is the date window the importer manages.
type SchoolYearConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
	// EndInclusive makes End itself part of the window.
	EndInclusive bool `yaml:"end_inclusive" json:"end_inclusive"`
}

type RedisConfig struct {
	// URL is a redis:// or rediss:// URL. Empty selects the in-memory
	// store, which loses data on restart.
	URL    string `yaml:"url" json:"url"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

type AIConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Model      string        `yaml:"model" json:"model"`
	APIKey     string        `yaml:"api_key" json:"-"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	JSONMode   bool          `yaml:"json_mode" json:"json_mode"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	// File, when set, receives a copy of every log line.
	File string `yaml:"file" json:"file"`
}

type InvalidationConfig struct {
	// WebhookURL receives {"paths": [...]} after each import that changed
	// days.
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	Token      string `yaml:"token" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone of the school; calendar dates and bell
	// times are interpreted there.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic imports by the server.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CalendarURL is the school's ICS feed.
	CalendarURL string `yaml:"calendar_url" json:"-"`

	// ICSCacheDir keeps ETag/Last-Modified metadata and the last body of
	// the feed. Empty disables conditional requests.
	ICSCacheDir string `yaml:"ics_cache_dir" json:"ics_cache_dir"`

	SchoolYear   SchoolYearConfig   `yaml:"school_year" json:"school_year"`
	Redis        RedisConfig        `yaml:"redis" json:"redis"`
	AI           AIConfig           `yaml:"ai" json:"ai"`
	Log          LogConfig          `yaml:"log" json:"log"`
	Invalidation InvalidationConfig `yaml:"invalidation" json:"invalidation"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Los_Angeles"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if c.SchoolYear.Start == "" {
		c.SchoolYear.Start = "2025-08-11"
	}
	if c.SchoolYear.End == "" {
		c.SchoolYear.End = "2026-06-12"
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://ai.hackclub.com"
	}
	if c.AI.Model == "" {
		c.AI.Model = "meta-llama/llama-4-maverick-17b-128e-instruct"
	}
	if c.AI.MaxRetries <= 0 {
		c.AI.MaxRetries = 5
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 2 * time.Minute
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		c.Log.Format = "text"
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := c.SchoolYearWindow(); err != nil {
		return fmt.Errorf("config: school_year: %w", err)
	}
	return nil
}

// Location returns the configured zone, or time.Local when it cannot be
// loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SchoolYearWindow parses the school year in the configured zone.
func (c *Config) SchoolYearWindow() (model.SchoolYear, error) {
	return model.NewSchoolYear(c.SchoolYear.Start, c.SchoolYear.End, c.SchoolYear.EndInclusive, c.Location())
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.CalendarURL, EnvCalendarURL)
	set(&c.Redis.URL, EnvRedisURL)
	set(&c.AI.APIKey, EnvAIAPIKey)
	set(&c.AI.BaseURL, EnvAIBaseURL)
	set(&c.AI.Model, EnvAIModel)
	set(&c.Invalidation.WebhookURL, EnvRevalidateURL)
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Load loads configuration from the given YAML path and applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
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
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// with 0600 permissions.
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

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".bellsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
