// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"testing"

	"github.com/viberails/viberails/internal/config"

	"github.com/spf13/cobra"
)

// failingProvider fails explicit --config loads and serves cfg otherwise.
type failingProvider struct {
	cfg *config.Config
}

func (p failingProvider) Load(_ context.Context, opts config.LoadOptions) (*config.Config, error) {
	if opts.ConfigFilePath != "" {
		return nil, context.Canceled
	}
	if p.cfg == nil {
		return nil, context.Canceled
	}
	return p.cfg, nil
}

func TestExecutedCommand(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	show, _, err := root.Find([]string{"config", "show"})
	if err != nil {
		t.Fatal(err)
	}

	if got := executedCommand(root, nil, show); got != show {
		t.Errorf("recorded command not preferred: %s", got.Name())
	}
	if got := executedCommand(root, []string{"config", "show"}, nil); got != show {
		t.Errorf("executedCommand(config show) = %s", got.Name())
	}
	if got := executedCommand(root, []string{"bogus"}, nil); got != root {
		t.Errorf("executedCommand(bogus) = %s, want root", got.Name())
	}
}

func TestShouldPollAfter(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	find := func(args ...string) *cobra.Command {
		t.Helper()
		c, _, err := root.Find(args)
		if err != nil {
			t.Fatalf("Find(%v): %v", args, err)
		}
		return c
	}

	tests := []struct {
		name string
		cmd  *cobra.Command
		args []string
		want bool
	}{
		{"config show", find("config", "show"), []string{"config", "show"}, true},
		{"unknown sub-command", root, []string{"bogus"}, true},
		{"bare root prints help", root, nil, false},
		{"upgrade", find(upgradeCommandName), []string{upgradeCommandName}, false},
		{"version", find(versionCommandName), []string{versionCommandName}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shouldPollAfter(tt.cmd, tt.args); got != tt.want {
				t.Errorf("shouldPollAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldPollAfter_HelpFlag(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "show"}
	parent := &cobra.Command{Use: "viberails"}
	parent.AddCommand(cmd)
	cmd.InitDefaultHelpFlag()
	if err := cmd.Flags().Set("help", "true"); err != nil {
		t.Fatal(err)
	}

	if shouldPollAfter(cmd, []string{"show", "--help"}) {
		t.Error("shouldPollAfter() = true after --help")
	}
}

func TestFallbackConfig(t *testing.T) {
	t.Parallel()

	loaded := config.DefaultConfig()
	loaded.Upgrade.AutoPoll = false

	app := NewApp(Dependencies{Config: failingProvider{cfg: loaded}})
	app.configPath = "/missing.cue"
	if got := app.fallbackConfig(context.Background()); got != loaded {
		t.Errorf("fallbackConfig() ignored the config dir and environment: %+v", got)
	}

	app = NewApp(Dependencies{Config: failingProvider{}})
	if got := app.fallbackConfig(context.Background()); !got.Upgrade.AutoPoll {
		t.Errorf("fallbackConfig() = %+v, want built-in defaults", got)
	}
}
