// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"fmt"
	"time"
)

// PollOptions configures one exit-time poll.
type PollOptions struct {
	// Interval is the minimum time between network polls. Zero means DefaultPollInterval.
	Interval time.Duration
	// Force skips the interval check, as when EnvForceUpgrade is set.
	Force bool
}

// Poll runs the rate-limited background upgrade check. It takes the upgrade
// lock first so that concurrent processes never both poll, then consults the
// poll state. The poll is recorded before the upgrade runs: a failed attempt
// still counts toward the interval.
//
// Poll reports whether a network check was performed. Callers log errors
// and carry on; a failed poll never changes the exit status.
func (u *Updater) Poll(ctx context.Context, opts PollOptions) (bool, Outcome, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	lock, err := u.AcquireLock()
	if err != nil {
		return false, Outcome{}, err
	}
	if lock == nil {
		u.logger.Debug("skipping poll: upgrade lock held elsewhere")
		return false, Outcome{Kind: OutcomeInProgress}, nil
	}
	defer lock.Release()

	statePath, err := u.pollStatePath()
	if err != nil {
		return false, Outcome{}, fmt.Errorf("resolving poll state path: %w", err)
	}
	state := LoadPollState(statePath)

	now := u.clock.Now()
	if !opts.Force && !state.ShouldPoll(now, interval) {
		u.logger.Debug("skipping poll: checked recently", "last_poll", state.LastPoll, "interval", interval)
		return false, Outcome{}, nil
	}

	if err := state.RecordPoll(now); err != nil {
		u.logger.Warn("unable to save upgrade state", "error", err)
	}

	outcome, err := u.Upgrade(ctx, lock, false, false)
	if err != nil {
		return true, Outcome{}, err
	}
	u.logger.Info("poll finished", "outcome", outcome.Kind.String())
	return true, outcome, nil
}
