// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/viberails/viberails/internal/issue"
	"github.com/viberails/viberails/internal/paths"
	"github.com/viberails/viberails/internal/selfupdate"
	"github.com/viberails/viberails/pkg/types"

	"github.com/spf13/cobra"
)

const (
	// A spawned helper starts while its parent still holds the lock, so it
	// waits up to helperLockAttempts*helperLockDelay for the parent to exit.
	helperLockAttempts = 10
	helperLockDelay    = 500 * time.Millisecond
)

// upgradeParams bundles the dependencies and flags for the upgrade command,
// enabling the core logic in runUpgrade to be tested without a real Cobra
// command.
type upgradeParams struct {
	stdout  io.Writer
	updater *selfupdate.Updater
	force   bool
	helper  bool // running as the detached helper of another viberails process
}

// newUpgradeCommand creates the `viberails upgrade` command, which replaces
// the installed binary with the release server's current build.
func newUpgradeCommand(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   upgradeCommandName,
		Short: "Upgrade viberails to the latest release",
		Long: `Upgrade viberails to the latest release.

The upgrade command reads the release manifest, downloads the build for
this platform, verifies its SHA-256 checksum and atomically replaces the
installed binary. Only one upgrade runs at a time on a machine; a second
invocation reports that an upgrade is already in progress.

On Windows a running executable cannot be replaced, so upgrading the
installed copy starts a short-lived helper that finishes in the background.`,
		Example: `  # Upgrade to the latest release
  viberails upgrade

  # Reinstall even when already on the latest version
  viberails upgrade --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := upgradeParams{
				stdout:  cmd.OutOrStdout(),
				updater: app.newUpdater(app.cfg, cmd.OutOrStdout()),
				force:   force,
				helper:  selfupdate.IsUpgradeHelper(),
			}

			if err := runUpgrade(cmd.Context(), p); err != nil {
				code, issueID := classifyUpgradeError(err)
				app.Logger().Error("upgrade failed", "error", err)
				return &ExitError{Code: code, Err: newServiceError(err, issueID, "")}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "reinstall even when already on the latest version")

	return cmd
}

// runUpgrade is the core upgrade logic, separated from Cobra for testability.
// A helper retries the lock while its parent exits; a direct invocation
// makes a single attempt.
func runUpgrade(ctx context.Context, p upgradeParams) error {
	var (
		outcome selfupdate.Outcome
		err     error
	)

	if p.helper {
		lock, lockErr := p.updater.AcquireLockWithRetry(ctx, helperLockAttempts, helperLockDelay)
		if lockErr != nil {
			return lockErr
		}
		if lock != nil {
			defer lock.Release()
		}
		outcome, err = p.updater.Upgrade(ctx, lock, p.force, true)
	} else {
		outcome, err = p.updater.PerformUpgrade(ctx, p.force, true)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(p.stdout, styleOutcome(outcome))
	return nil
}

func styleOutcome(o selfupdate.Outcome) string {
	switch o.Kind {
	case selfupdate.OutcomeUpgraded, selfupdate.OutcomeReinstalled:
		return SuccessStyle.Render(o.String())
	case selfupdate.OutcomeInProgress, selfupdate.OutcomeSpawned:
		return WarningStyle.Render(o.String())
	default:
		return o.String()
	}
}

// classifyUpgradeError maps an upgrade error to the process exit code and
// the issue catalog entry with remediation guidance. Problems the user can
// fix locally exit 1; network, integrity and replacement failures exit 2.
func classifyUpgradeError(err error) (types.ExitCode, issue.Id) {
	switch {
	case errors.Is(err, paths.ErrInvalidDirOverride):
		return types.ExitUserError, issue.InvalidDirOverrideId
	case errors.Is(err, os.ErrPermission):
		return types.ExitUserError, issue.PermissionDeniedId
	case errors.Is(err, selfupdate.ErrChecksumMissing):
		return types.ExitUserError, issue.ChecksumMissingId
	case errors.Is(err, selfupdate.ErrChecksumMismatch):
		return types.ExitFailure, issue.ChecksumMismatchId
	case errors.Is(err, selfupdate.ErrSpawn):
		return types.ExitFailure, issue.SpawnFailedId
	case errors.Is(err, selfupdate.ErrReplace):
		return types.ExitFailure, issue.ReplaceFailedId
	case errors.Is(err, selfupdate.ErrNetwork):
		return types.ExitFailure, issue.NetworkFailedId
	default:
		return types.ExitFailure, 0
	}
}
