package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHolidayURL   = "https://holidays-jp.github.io/api/v1/date.json"
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Asia/Tokyo"
	defaultDatabase     = "./var/visitcal.db"
	defaultHolidayCache = "./var/holiday-cache"
	defaultRefresh      = "0 4 * * *"
	defaultTokenTTL     = 12 * time.Hour
	defaultHorizonDays  = 365
)

// Environment variables that override the file. They may also come from a
// .env file loaded by LoadDotenv.
const (
	EnvListen      = "VISITCAL_LISTEN"
	EnvDatabase    = "VISITCAL_DATABASE"
	EnvPIN         = "VISITCAL_PIN"
	EnvTokenSecret = "VISITCAL_TOKEN_SECRET"
)

// HolidayConfig describes the holiday feed.
type HolidayConfig struct {
	// URL returns a JSON object mapping "YYYY-MM-DD" to a holiday name.
	URL string `yaml:"url" json:"url"`
	// CacheDir keeps the last good body and its ETag / Last-Modified.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// Refresh is a cron expression for periodic refetching.
	Refresh string `yaml:"refresh" json:"refresh"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose wall clock all visits are scheduled in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Database is the SQLite file holding visit definitions.
	Database string `yaml:"database" json:"database"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Holidays HolidayConfig `yaml:"holidays" json:"holidays"`

	// PIN gates the API. Empty disables the gate.
	PIN string `yaml:"pin,omitempty" json:"-"`
	// TokenSecret signs unlock tokens. If empty a random secret is generated
	// at startup, so tokens do not survive a restart.
	TokenSecret string        `yaml:"token_secret,omitempty" json:"-"`
	TokenTTL    time.Duration `yaml:"token_ttl" json:"token_ttl"`

	// MaskNames replaces visit titles with masked names in calendar views.
	MaskNames bool `yaml:"mask_names" json:"mask_names"`

	// ExportHorizonDays bounds how far ahead holiday exclusions are written
	// into the iCalendar export.
	ExportHorizonDays int `yaml:"export_horizon_days" json:"export_horizon_days"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		Database: defaultDatabase,
		LogLevel: "info",
		Holidays: HolidayConfig{
			URL:      DefaultHolidayURL,
			CacheDir: defaultHolidayCache,
			Refresh:  defaultRefresh,
		},
		TokenTTL:          defaultTokenTTL,
		ExportHorizonDays: defaultHorizonDays,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	if c.Holidays.URL == "" {
		c.Holidays.URL = DefaultHolidayURL
	}
	if c.Holidays.CacheDir == "" {
		c.Holidays.CacheDir = defaultHolidayCache
	}
	if c.Holidays.Refresh == "" {
		c.Holidays.Refresh = defaultRefresh
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.ExportHorizonDays <= 0 {
		c.ExportHorizonDays = defaultHorizonDays
	}
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := os.Getenv(EnvPIN); v != "" {
		c.PIN = v
	}
	if v := os.Getenv(EnvTokenSecret); v != "" {
		c.TokenSecret = v
	}
}

// LoadDotenv loads the given .env files (".env" if none) into the process
// environment. Missing files are not an error.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
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

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".visitcal-config-*.tmp")
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
