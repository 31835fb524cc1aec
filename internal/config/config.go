// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/viberails/viberails/internal/issue"
	"github.com/viberails/viberails/internal/paths"
	"github.com/viberails/viberails/pkg/platform"
)

const (
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override, e.g. VIBERAILS_LOG_LEVEL.
	EnvPrefix = "VIBERAILS"

	// maxConfigFileSize bounds the config file read into memory.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the viberails configuration directory. VIBERAILS_CONFIG_DIR
// wins when set; otherwise Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir, err := paths.ConfigDirOverride(); err != nil || dir != "" {
		return dir, err
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, paths.ProjectName), nil
}

// FilePath returns the config file location inside dir, or inside ConfigDir
// when dir is empty.
func FilePath(dir string) (string, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// newViper returns a viper instance seeded with defaults and bound to the
// VIBERAILS_ environment.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("upgrade.base_url", defaults.Upgrade.BaseURL.String())
	v.SetDefault("upgrade.poll_interval", defaults.Upgrade.PollInterval)
	v.SetDefault("upgrade.auto_poll", defaults.Upgrade.AutoPoll)
	v.SetDefault("upgrade.download_timeout", defaults.Upgrade.DownloadTimeout)
	v.SetDefault("upgrade.replace_attempts", defaults.Upgrade.ReplaceAttempts)
	v.SetDefault("upgrade.replace_delay", defaults.Upgrade.ReplaceDelay)
	v.SetDefault("log.level", defaults.Log.Level.String())
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()
	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		// An explicit --config file must exist.
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'viberails config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cuePath, err := FilePath(opts.ConfigDirPath)
		if err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("locate configuration").
				WithSuggestion("Set " + paths.EnvConfigDir + " to an absolute path without '..'").
				Wrap(err).
				BuildError()
		}
		if fileExists(cuePath) {
			resolvedPath = cuePath
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'viberails config --help' for configuration options").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("parse configuration").
			WithSuggestion("Durations use Go syntax, e.g. \"90s\", \"1h\"").
			Wrap(fmt.Errorf("failed to parse config: %w", err)).
			BuildError()
	}
	cfg.Upgrade.BaseURL = BaseURL(strings.TrimRight(cfg.Upgrade.BaseURL.String(), "/"))

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check the values in the config file and any " + EnvPrefix + "_* environment variables").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into dir (ConfigDir when
// empty) unless one already exists. It returns the file path and whether a
// file was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	cfgPath, err := FilePath(dir)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// viberails configuration file\n")
	sb.WriteString("// Any key can be overridden from the environment, e.g. VIBERAILS_UPGRADE_AUTO_POLL=false.\n\n")

	sb.WriteString("upgrade: {\n")
	fmt.Fprintf(&sb, "\tbase_url:         %q\n", cfg.Upgrade.BaseURL)
	fmt.Fprintf(&sb, "\tpoll_interval:    %q\n", cfg.Upgrade.PollInterval)
	fmt.Fprintf(&sb, "\tauto_poll:        %v\n", cfg.Upgrade.AutoPoll)
	fmt.Fprintf(&sb, "\tdownload_timeout: %q\n", cfg.Upgrade.DownloadTimeout)
	fmt.Fprintf(&sb, "\treplace_attempts: %d\n", cfg.Upgrade.ReplaceAttempts)
	fmt.Fprintf(&sb, "\treplace_delay:    %q\n", cfg.Upgrade.ReplaceDelay)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel:       %q\n", cfg.Log.Level)
	fmt.Fprintf(&sb, "\tmax_size_mb: %d\n", cfg.Log.MaxSizeMB)
	fmt.Fprintf(&sb, "\tmax_backups: %d\n", cfg.Log.MaxBackups)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

// GenerateTOML renders the configuration as TOML, with durations in Go
// duration syntax.
func GenerateTOML(cfg *Config) (string, error) {
	doc := map[string]any{
		"upgrade": map[string]any{
			"base_url":         cfg.Upgrade.BaseURL.String(),
			"poll_interval":    cfg.Upgrade.PollInterval.String(),
			"auto_poll":        cfg.Upgrade.AutoPoll,
			"download_timeout": cfg.Upgrade.DownloadTimeout.String(),
			"replace_attempts": cfg.Upgrade.ReplaceAttempts,
			"replace_delay":    cfg.Upgrade.ReplaceDelay.String(),
		},
		"log": map[string]any{
			"level":       cfg.Log.Level.String(),
			"max_size_mb": cfg.Log.MaxSizeMB,
			"max_backups": cfg.Log.MaxBackups,
		},
		"ui": map[string]any{
			"verbose": cfg.UI.Verbose,
		},
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding config as TOML: %w", err)
	}
	return string(out), nil
}
