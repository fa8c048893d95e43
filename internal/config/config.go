// Package config loads fintrack settings from TOML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config holds all fintrack configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	General    GeneralConfig    `toml:"general"`
	Poll       PollConfig       `toml:"poll"`
	Appearance AppearanceConfig `toml:"appearance"`
	Log        LogConfig        `toml:"log"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Notify     NotifyConfig     `toml:"notify"`
}

// APIConfig points at the remote finance API.
type APIConfig struct {
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// GeneralConfig holds display preferences.
type GeneralConfig struct {
	Currency        string `toml:"currency"`
	DefaultCategory string `toml:"default_category"`
}

// PollConfig controls the shared record poller.
type PollConfig struct {
	IntervalSec   int `toml:"interval_sec"`
	RefreshMinSec int `toml:"refresh_min_sec"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file,omitempty"`
}

// DaemonConfig holds background monitor settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// NotifyConfig enables forwarding daemon events to RabbitMQ.
type NotifyConfig struct {
	AMQPURL  string `toml:"amqp_url,omitempty"`
	Exchange string `toml:"exchange"`
}

// envOverrides lists the variables that beat the config file.
type envOverrides struct {
	APIURL   string `env:"FINTRACK_API_URL"`
	LogLevel string `env:"FINTRACK_LOG_LEVEL"`
	Theme    string `env:"FINTRACK_THEME"`
	AMQPURL  string `env:"FINTRACK_AMQP_URL"`
	Currency string `env:"FINTRACK_CURRENCY"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:    "http://localhost:5000",
			TimeoutSec: 10,
		},
		General: GeneralConfig{
			Currency:        "Ksh",
			DefaultCategory: "All",
		},
		Poll: PollConfig{
			IntervalSec:   10,
			RefreshMinSec: 2,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Log: LogConfig{
			Level: "warn",
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			EventsBuffer: 200,
		},
		Notify: NotifyConfig{
			Exchange: "fintrack.events",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fintrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fintrack")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// CacheDir returns the XDG-compliant cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "fintrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "fintrack")
}

// StorePath returns the local session database path.
func StorePath() string {
	return filepath.Join(CacheDir(), "fintrack.db")
}

// Load reads the config file, then applies .env and environment overrides.
func Load() (Config, error) {
	cfg, err := LoadFile(ConfigPath())
	if err != nil {
		return cfg, err
	}
	if err := LoadDotEnv(".env"); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile reads one TOML file, returning defaults if it doesn't exist.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any FINTRACK_* variables that are set.
func ApplyEnv(cfg *Config) error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if e.APIURL != "" {
		cfg.API.BaseURL = e.APIURL
	}
	if e.LogLevel != "" {
		cfg.Log.Level = e.LogLevel
	}
	if e.Theme != "" {
		cfg.Appearance.Theme = e.Theme
	}
	if e.AMQPURL != "" {
		cfg.Notify.AMQPURL = e.AMQPURL
	}
	if e.Currency != "" {
		cfg.General.Currency = e.Currency
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	if c.Poll.IntervalSec < 2 {
		return fmt.Errorf("poll.interval_sec must be at least 2, got %d", c.Poll.IntervalSec)
	}
	if c.API.TimeoutSec < 1 {
		return fmt.Errorf("api.timeout_sec must be positive, got %d", c.API.TimeoutSec)
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSec) * time.Second
}

// RefreshMin returns the minimum spacing of manual refreshes.
func (c Config) RefreshMin() time.Duration {
	return time.Duration(c.Poll.RefreshMinSec) * time.Second
}

// Timeout returns the per-request API timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveFile(ConfigPath(), cfg)
}

// SaveFile writes cfg to path with owner-only permissions.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
