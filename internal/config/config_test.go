// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/viberails/viberails/internal/issue"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := Resolve(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want none", path)
	}

	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_CUEFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	written := writeConfig(t, dir, `
upgrade: {
	base_url:      "https://mirror.example.test/viberails/"
	poll_interval: "30m"
	auto_poll:     false
}
log: level: "debug"
`)

	cfg, path, err := Resolve(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != written {
		t.Errorf("resolved path = %q, want %q", path, written)
	}

	if cfg.Upgrade.BaseURL != "https://mirror.example.test/viberails" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.Upgrade.BaseURL)
	}
	if cfg.Upgrade.PollInterval != 30*time.Minute {
		t.Errorf("PollInterval = %s", cfg.Upgrade.PollInterval)
	}
	if cfg.Upgrade.AutoPoll {
		t.Error("AutoPoll = true, want false")
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Upgrade.ReplaceAttempts != 5 || cfg.Upgrade.ReplaceDelay != 5*time.Second {
		t.Errorf("replace defaults lost: %+v", cfg.Upgrade)
	}
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", `log: level: "loud"`},
		{"bad duration", `upgrade: poll_interval: "soon"`},
		{"zero attempts", `upgrade: replace_attempts: 0`},
		{"non-http base url", `upgrade: base_url: "ftp://example.test"`},
		{"unknown key", `upgrade: channel: "beta"`},
		{"syntax error", `upgrade: {`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			if err == nil {
				t.Fatal("expected error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error is not actionable: %T %v", err, err)
			}
			if !ae.HasSuggestions() {
				t.Error("config error carries no suggestions")
			}
		})
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "nope.cue")
	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: missing})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("error = %v, want config file not found", err)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.cue")
	if err := os.WriteFile(path, []byte(`ui: verbose: true`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// Environment overrides mutate process state and cannot run in parallel.
func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `upgrade: poll_interval: "30m"`)

	t.Setenv("VIBERAILS_UPGRADE_POLL_INTERVAL", "5m")
	t.Setenv("VIBERAILS_UPGRADE_AUTO_POLL", "false")
	t.Setenv("VIBERAILS_LOG_LEVEL", "warn")

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Upgrade.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %s, want environment value 5m", cfg.Upgrade.PollInterval)
	}
	if cfg.Upgrade.AutoPoll {
		t.Error("AutoPoll = true, want environment value false")
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("VIBERAILS_LOG_LEVEL", "chatty")

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), `"chatty"`) {
		t.Errorf("error does not name the bad value: %v", err)
	}
}

func TestConfigDir_Override(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIBERAILS_CONFIG_DIR", dir)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Clean(dir) {
		t.Errorf("ConfigDir() = %q, want %q", got, dir)
	}

	t.Setenv("VIBERAILS_CONFIG_DIR", "relative/dir")
	if _, err := ConfigDir(); err == nil {
		t.Error("ConfigDir() accepted a relative override")
	}
}

func TestCreateDefaultConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path, created, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error: %v", err)
	}
	if !created {
		t.Error("CreateDefaultConfig() reported no file written")
	}

	cfg, resolved, err := Resolve(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loading generated config: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved %q, want %q", resolved, path)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("generated config loads as %+v, want defaults", cfg)
	}

	if _, created, err := CreateDefaultConfig(dir); err != nil || created {
		t.Errorf("second CreateDefaultConfig() = created %v, err %v; want existing file kept", created, err)
	}
}

func TestGenerateTOML(t *testing.T) {
	t.Parallel()

	out, err := GenerateTOML(DefaultConfig())
	if err != nil {
		t.Fatalf("GenerateTOML() error: %v", err)
	}
	for _, want := range []string{"[upgrade]", "poll_interval = ", "1h0m0s", "replace_attempts = 5", "[log]", "[ui]", "verbose = false"} {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateTOML() missing %q:\n%s", want, out)
		}
	}
}
