package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), it reports every problem as a criterio field error and
// checks file access.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		} else if err != nil && !os.IsNotExist(err) {
			errs = errs.Append("config", fmt.Errorf("cannot access %s: %w", configPath, err))
		}
	}

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	} else if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
		errs = errs.Append("data_dir", fmt.Errorf("%s is not a directory", c.DataDir))
	}

	if err := validateBaseURL(c.API.BaseURL); err != nil {
		errs = errs.Append("api.base_url", err)
	}
	if c.API.Timeout < 0 {
		errs = errs.Append("api.timeout", fmt.Errorf("cannot be negative"))
	}

	if !isValidDriver(c.Storage.Driver) {
		errs = errs.Append("storage.driver", fmt.Errorf("must be %q or %q, got %q", DriverJSONFile, DriverSQLite, c.Storage.Driver))
	}

	if c.Sync.FlushTimeout < 0 {
		errs = errs.Append("sync.flush_timeout", fmt.Errorf("cannot be negative"))
	}

	if n := utf8.RuneCountInString(c.Display.CurrencySymbol); n > 3 {
		errs = errs.Append("display.currency_symbol", fmt.Errorf("must be at most 3 characters, got %d", n))
	}

	return errs.ToError()
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		warnings = append(warnings, ValidationWarning{
			Category: "API",
			Item:     "api.base_url",
			Message:  "plain http to a remote host sends the session token unencrypted",
		})
	}

	if !c.Sync.Enabled {
		warnings = append(warnings, ValidationWarning{
			Category: "Sync",
			Item:     "sync.enabled",
			Message:  "cart changes will not be saved to your account",
		})
	}

	return warnings
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
