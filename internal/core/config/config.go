// Package config handles configuration loading and validation for storefront.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverJSONFile = "jsonfile"
	DriverSQLite   = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Display DisplayConfig `yaml:"display"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// APIConfig locates the storefront backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url" env:"STOREFRONT_API_URL"`
	// Timeout bounds each request. Zero leaves the HTTP client default.
	Timeout time.Duration `yaml:"timeout" env:"STOREFRONT_API_TIMEOUT"`
}

// StorageConfig selects where client-side state is kept.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"STOREFRONT_STORAGE_DRIVER"`
}

// SyncConfig controls server cart synchronization.
type SyncConfig struct {
	Enabled      bool          `yaml:"enabled" env:"STOREFRONT_SYNC_ENABLED"`
	FlushTimeout time.Duration `yaml:"flush_timeout" env:"STOREFRONT_SYNC_FLUSH_TIMEOUT"`
}

// DisplayConfig holds presentation settings.
type DisplayConfig struct {
	CurrencySymbol string `yaml:"currency_symbol" env:"STOREFRONT_CURRENCY_SYMBOL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
		},
		Storage: StorageConfig{
			Driver: DriverJSONFile,
		},
		Sync: SyncConfig{
			Enabled:      true,
			FlushTimeout: 5 * time.Second,
		},
		Display: DisplayConfig{
			CurrencySymbol: "$",
		},
	}
}

// LoadDotEnv loads environment variables from a .env file. A missing file is
// not an error; variables already set in the environment win.
func LoadDotEnv(path string) (bool, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

// Load reads configuration from the given path and sets the data directory.
// Environment variables override the file. If configPath is empty or doesn't
// exist, defaults are used.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	if c.Sync.FlushTimeout == 0 {
		c.Sync.FlushTimeout = defaults.Sync.FlushTimeout
	}
	if c.Display.CurrencySymbol == "" {
		c.Display.CurrencySymbol = defaults.Display.CurrencySymbol
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if err := validateBaseURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}

	if !isValidDriver(c.Storage.Driver) {
		return fmt.Errorf("storage.driver %q is not one of %s, %s", c.Storage.Driver, DriverJSONFile, DriverSQLite)
	}

	if c.Sync.FlushTimeout < 0 {
		return fmt.Errorf("sync.flush_timeout cannot be negative")
	}

	return nil
}

// StorageFile returns the path of the client-side state file for the
// configured driver.
func (c *Config) StorageFile() string {
	if c.Storage.Driver == DriverSQLite {
		return filepath.Join(c.DataDir, "storage.db")
	}
	return filepath.Join(c.DataDir, "storage.json")
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func isValidDriver(driver string) bool {
	switch driver {
	case DriverJSONFile, DriverSQLite:
		return true
	default:
		return false
	}
}
