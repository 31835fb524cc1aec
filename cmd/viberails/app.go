// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/viberails/viberails/internal/config"
	"github.com/viberails/viberails/internal/logging"
	"github.com/viberails/viberails/internal/paths"
	"github.com/viberails/viberails/internal/selfupdate"
	"github.com/viberails/viberails/pkg/types"

	"github.com/spf13/cobra"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra command handler receives an App
	// reference and reads configuration, logger and output streams through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		verbose    bool
		configPath string

		cfg     *config.Config
		logger  *slog.Logger
		closer  io.Closer
		command *cobra.Command
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		logger: logging.Discard(),
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// Logger returns the logger configured for the running command.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Close releases the log file, if one is open.
func (a *App) Close() {
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
}

// prepare loads configuration and sets up logging for cmd. It runs as the
// root command's PersistentPreRunE so every subcommand sees a loaded config.
func (a *App) prepare(ctx context.Context, cmd *cobra.Command) error {
	a.command = cmd

	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return &ExitError{Code: types.ExitUserError, Err: newServiceError(err, configLoadIssue(err), "")}
	}
	a.cfg = cfg
	if !a.verbose {
		a.verbose = cfg.UI.Verbose
	}

	// The explicit upgrade command always reports to the terminal; a detached
	// helper has no terminal and logs to the file like every other command.
	console := a.verbose || (topLevelName(cmd) == upgradeCommandName && !selfupdate.IsUpgradeHelper())
	opts := logging.Options{
		Level:      cfg.Log.Level.String(),
		Console:    console,
		Stderr:     a.stderr,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if !console {
		if dir, dirErr := paths.DataDir(); dirErr == nil {
			opts.Dir = dir
		}
	}

	logger, closer, err := logging.New(opts)
	if err != nil {
		return &ExitError{Code: types.ExitUserError, Err: err}
	}
	a.logger = logger
	a.closer = closer
	return nil
}

// newUpdater builds an Updater from cfg. Progress lines go to out.
func (a *App) newUpdater(cfg *config.Config, out io.Writer) *selfupdate.Updater {

	client := selfupdate.NewReleaseClient(
		cfg.Upgrade.BaseURL.String(),
		selfupdate.WithTimeout(cfg.Upgrade.DownloadTimeout),
		selfupdate.WithUserAgent(selfupdate.UserAgent(paths.ProjectName, Version)),
	)

	return selfupdate.NewUpdater(Version,
		selfupdate.WithReleaseClient(client),
		selfupdate.WithReplaceRetry(cfg.Upgrade.ReplaceAttempts, cfg.Upgrade.ReplaceDelay),
		selfupdate.WithLogger(a.logger),
		selfupdate.WithOutput(out),
	)
}
