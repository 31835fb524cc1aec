// SPDX-License-Identifier: MPL-2.0

package selfupdate

import "fmt"

const (
	// OutcomeAlreadyLatest means the running build already matches the release.
	OutcomeAlreadyLatest OutcomeKind = iota + 1
	// OutcomeUpgraded means the installed binary was replaced by a different version.
	OutcomeUpgraded
	// OutcomeReinstalled means a forced upgrade reinstalled the same version.
	OutcomeReinstalled
	// OutcomeSpawned means a detached helper was started to do the work.
	OutcomeSpawned
	// OutcomeInProgress means another process holds the upgrade lock.
	OutcomeInProgress
)

type (
	// OutcomeKind identifies the terminal state of an upgrade attempt.
	OutcomeKind int

	// Outcome is the result of an upgrade attempt. Version is set for
	// AlreadyLatest and Reinstalled; From and To are set for Upgraded.
	Outcome struct {
		Kind    OutcomeKind
		Version string
		From    string
		To      string
	}
)

// String returns a short name for the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAlreadyLatest:
		return "already-latest"
	case OutcomeUpgraded:
		return "upgraded"
	case OutcomeReinstalled:
		return "reinstalled"
	case OutcomeSpawned:
		return "spawned"
	case OutcomeInProgress:
		return "in-progress"
	}
	return "unknown"
}

// String returns a one-line human-readable summary of the outcome.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeAlreadyLatest:
		return fmt.Sprintf("Already on latest version %s", o.Version)
	case OutcomeUpgraded:
		return fmt.Sprintf("Upgraded from %s to %s", o.From, o.To)
	case OutcomeReinstalled:
		return fmt.Sprintf("Reinstalled version %s", o.Version)
	case OutcomeSpawned:
		return "Upgrade started in background"
	case OutcomeInProgress:
		return "Another upgrade is already in progress"
	}
	return "Unknown upgrade outcome"
}
