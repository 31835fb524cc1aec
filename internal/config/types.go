// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/viberails/viberails/internal/selfupdate"
)

const (
	// LogLevelDebug logs everything, including lock and poll decisions.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only errors.
	LogLevelError LogLevel = "error"

	defaultLogMaxSizeMB  = 10
	defaultLogMaxBackups = 3
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidBaseURL is returned when the release server URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL")
	// ErrInvalidDuration is returned when a configured duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidUpgradeConfig is the sentinel error wrapped by InvalidUpgradeConfigError.
	ErrInvalidUpgradeConfig = errors.New("invalid upgrade config")
	// ErrInvalidLogConfig is the sentinel error wrapped by InvalidLogConfigError.
	ErrInvalidLogConfig = errors.New("invalid log config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum severity written to the log.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// BaseURL is the release server location.
	BaseURL string

	// InvalidBaseURLError is returned when a BaseURL is unusable.
	InvalidBaseURLError struct {
		Value  BaseURL
		Reason string
	}

	// InvalidDurationError reports a non-positive duration for Field.
	InvalidDurationError struct {
		Field string
		Value time.Duration
	}

	// InvalidUpgradeConfigError collects field errors of an UpgradeConfig.
	InvalidUpgradeConfigError struct {
		FieldErrors []error
	}

	// InvalidLogConfigError collects field errors of a LogConfig.
	InvalidLogConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Upgrade configures the self-upgrade subsystem
		Upgrade UpgradeConfig `json:"upgrade" toml:"upgrade" mapstructure:"upgrade"`
		// Log configures the log file
		Log LogConfig `json:"log" toml:"log" mapstructure:"log"`
		// UI configures the user interface
		UI UIConfig `json:"ui" toml:"ui" mapstructure:"ui"`
	}

	// UpgradeConfig configures release checks and binary replacement.
	UpgradeConfig struct {
		BaseURL         BaseURL       `json:"base_url" toml:"base_url" mapstructure:"base_url"`
		PollInterval    time.Duration `json:"poll_interval" toml:"poll_interval" mapstructure:"poll_interval"`
		AutoPoll        bool          `json:"auto_poll" toml:"auto_poll" mapstructure:"auto_poll"`
		DownloadTimeout time.Duration `json:"download_timeout" toml:"download_timeout" mapstructure:"download_timeout"`
		ReplaceAttempts int           `json:"replace_attempts" toml:"replace_attempts" mapstructure:"replace_attempts"`
		ReplaceDelay    time.Duration `json:"replace_delay" toml:"replace_delay" mapstructure:"replace_delay"`
	}

	// LogConfig configures the rotating log file.
	LogConfig struct {
		Level      LogLevel `json:"level" toml:"level" mapstructure:"level"`
		MaxSizeMB  int      `json:"max_size_mb" toml:"max_size_mb" mapstructure:"max_size_mb"`
		MaxBackups int      `json:"max_backups" toml:"max_backups" mapstructure:"max_backups"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables verbose output
		Verbose bool `json:"verbose" toml:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Upgrade: UpgradeConfig{
			BaseURL:         selfupdate.DefaultBaseURL,
			PollInterval:    selfupdate.DefaultPollInterval,
			AutoPoll:        true,
			DownloadTimeout: selfupdate.DefaultDownloadTimeout,
			ReplaceAttempts: selfupdate.DefaultReplaceAttempts,
			ReplaceDelay:    selfupdate.DefaultReplaceDelay,
		},
		Log: LogConfig{
			Level:      LogLevelInfo,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the BaseURL.
func (u BaseURL) String() string { return string(u) }

// IsValid returns whether the BaseURL is an absolute http or https URL.
func (u BaseURL) IsValid() (bool, []error) {
	parsed, err := url.Parse(string(u))
	switch {
	case err != nil:
		return false, []error{&InvalidBaseURLError{Value: u, Reason: err.Error()}}
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return false, []error{&InvalidBaseURLError{Value: u, Reason: "scheme must be http or https"}}
	case parsed.Host == "":
		return false, []error{&InvalidBaseURLError{Value: u, Reason: "missing host"}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidBaseURLError) Error() string {
	return fmt.Sprintf("invalid base URL %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidBaseURL for errors.Is() compatibility.
func (e *InvalidBaseURLError) Unwrap() error { return ErrInvalidBaseURL }

// Error implements the error interface.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("%s must be positive, got %s", e.Field, e.Value)
}

// Unwrap returns ErrInvalidDuration for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// IsValid returns whether the UpgradeConfig has valid fields.
func (c UpgradeConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.BaseURL.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for field, d := range map[string]time.Duration{
		"upgrade.poll_interval":    c.PollInterval,
		"upgrade.download_timeout": c.DownloadTimeout,
		"upgrade.replace_delay":    c.ReplaceDelay,
	} {
		if d <= 0 {
			errs = append(errs, &InvalidDurationError{Field: field, Value: d})
		}
	}
	if c.ReplaceAttempts < 1 {
		errs = append(errs, fmt.Errorf("upgrade.replace_attempts must be at least 1, got %d", c.ReplaceAttempts))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUpgradeConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUpgradeConfigError.
func (e *InvalidUpgradeConfigError) Error() string {
	return fmt.Sprintf("invalid upgrade config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidUpgradeConfig for errors.Is() compatibility.
func (e *InvalidUpgradeConfigError) Unwrap() error { return ErrInvalidUpgradeConfig }

// IsValid returns whether the LogConfig has valid fields.
func (c LogConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.MaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("log.max_size_mb must be at least 1, got %d", c.MaxSizeMB))
	}
	if c.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("log.max_backups must not be negative, got %d", c.MaxBackups))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLogConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidLogConfigError.
func (e *InvalidLogConfigError) Error() string {
	return fmt.Sprintf("invalid log config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidLogConfig for errors.Is() compatibility.
func (e *InvalidLogConfigError) Unwrap() error { return ErrInvalidLogConfig }

// IsValid returns whether the Config has valid fields.
// UI has only bool fields and needs no validation.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Upgrade.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
