// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/viberails/viberails/internal/issue"
	"github.com/viberails/viberails/internal/paths"
	"github.com/viberails/viberails/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

const (
	upgradeCommandName    = "upgrade"
	versionCommandName    = "version"
	completionCommandName = "completion"
	helpCommandName       = "help"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand creates the `viberails` command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "viberails",
		Short: "Security hooks for AI coding assistants",
		Long: TitleStyle.Render("viberails") + SubtitleStyle.Render(" - Security hooks for AI coding assistants") + `

viberails keeps itself up to date: after each command it checks the
release server at most once per poll interval and installs newer builds
in place.

` + SubtitleStyle.Render("Examples:") + `
  viberails upgrade           Upgrade to the latest release now
  viberails upgrade --force   Reinstall the latest release
  viberails config show       Show current configuration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd.Context(), cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is "+defaultConfigHint()+")")

	root.AddCommand(newUpgradeCommand(app))
	root.AddCommand(newConfigCommand(app))
	root.AddCommand(newVersionCommand(app))

	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI with the process arguments and exits.
// This is called by main.main().
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Run executes the command line args and returns the process exit code. The
// exit-time upgrade poll runs after the command, whatever its result, and
// never changes the exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := NewApp(Dependencies{Stdout: stdout, Stderr: stderr})
	defer app.Close()

	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	code := types.ExitOK
	err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var ae *issue.ActionableError
			if errors.As(err, &ae) {
				fmt.Fprintln(w, ErrorStyle.Render("Error: ")+ae.Format(app.verbose))
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	)
	if err != nil {
		code = types.ExitFailure
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		}
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			renderServiceError(stderr, svcErr, app.logger)
		}
	}

	app.pollAtExit(ctx, executedCommand(root, args, app.command), args)
	return int(code)
}

// topLevelName returns the name of the root's direct child that cmd belongs
// to, or "" for the root itself.
func topLevelName(cmd *cobra.Command) string {
	if cmd == nil {
		return ""
	}
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	if !cmd.HasParent() {
		return ""
	}
	return cmd.Name()
}

func defaultConfigHint() string {
	return "$" + paths.EnvConfigDir + "/config.cue or the platform config directory"
}
