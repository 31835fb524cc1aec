// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"

	"github.com/viberails/viberails/internal/config"
	"github.com/viberails/viberails/internal/selfupdate"

	"github.com/spf13/cobra"
)

// pollSkipped lists the top-level commands after which no exit-time poll runs.
var pollSkipped = map[string]bool{
	upgradeCommandName:    true,
	helpCommandName:       true,
	completionCommandName: true,
	versionCommandName:    true,
	"__complete":          true,
	"man":                 true,
}

// executedCommand returns the command that handled args: the one recorded by
// the pre-run hook, or the closest match in root when the run failed before
// reaching it (unknown sub-command, bad flag, config load failure).
func executedCommand(root *cobra.Command, args []string, ran *cobra.Command) *cobra.Command {
	if ran != nil {
		return ran
	}
	if cmd, _, err := root.Find(args); err == nil && cmd != nil {
		return cmd
	}
	return root
}

// shouldPollAfter reports whether the exit-time poll runs after cmd handled
// args. Help and version requests, given as sub-commands or flags, never
// poll; neither does a bare `viberails`, which only prints help.
func shouldPollAfter(cmd *cobra.Command, args []string) bool {
	if !cmd.HasParent() && len(args) == 0 {
		return false
	}
	if pollSkipped[topLevelName(cmd)] {
		return false
	}
	for _, name := range []string{"help", "version"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			return false
		}
	}
	return true
}

// pollAtExit runs the rate-limited background upgrade check once the user's
// command has finished, whatever its result. Failures are logged and never
// reach the exit code.
func (a *App) pollAtExit(ctx context.Context, cmd *cobra.Command, args []string) {
	if selfupdate.IsUpgradeHelper() || !shouldPollAfter(cmd, args) {
		return
	}

	cfg := a.cfg
	if cfg == nil {
		cfg = a.fallbackConfig(ctx)
	}
	if !cfg.Upgrade.AutoPoll {
		a.logger.Debug("exit-time poll disabled")
		return
	}

	updater := a.newUpdater(cfg, io.Discard)
	polled, outcome, err := updater.Poll(ctx, selfupdate.PollOptions{
		Interval: cfg.Upgrade.PollInterval,
		Force:    selfupdate.ForceUpgradeFromEnv(),
	})
	if err != nil {
		a.logger.Warn("background upgrade failed", "error", err)
		return
	}
	if polled {
		a.logger.Info("background upgrade check", "outcome", outcome.Kind.String())
	}
}

// fallbackConfig is used when the command never loaded configuration. It
// drops a failing --config file and keeps the config dir and environment,
// then falls back to the built-in defaults.
func (a *App) fallbackConfig(ctx context.Context) *config.Config {
	if cfg, err := a.Config.Load(ctx, config.LoadOptions{}); err == nil {
		return cfg
	}
	return config.DefaultConfig()
}
