// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoll_FirstRunUpgrades(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	polled, outcome, err := f.updater(t, testRunVersion).Poll(context.Background(), PollOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !polled {
		t.Fatal("Poll() skipped a never-polled state")
	}
	if outcome.Kind != OutcomeUpgraded {
		t.Errorf("outcome = %+v, want Upgraded", outcome)
	}
	if got := f.installedContent(t); got != testNewBinary {
		t.Errorf("installed binary = %q", got)
	}
	if f.out.Len() != 0 {
		t.Errorf("poll printed progress: %q", f.out.String())
	}
}

func TestPoll_RespectsInterval(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor(testRunVersion))
	u := f.updater(t, testRunVersion)

	polled, _, err := u.Poll(context.Background(), PollOptions{Interval: time.Hour})
	if err != nil || !polled {
		t.Fatalf("first Poll() = %v, %v", polled, err)
	}
	first := f.srv.requestCount()

	f.clock.Advance(30 * time.Minute)
	polled, _, err = u.Poll(context.Background(), PollOptions{Interval: time.Hour})
	if err != nil {
		t.Fatalf("second Poll() error: %v", err)
	}
	if polled {
		t.Error("Poll() ran inside the interval")
	}
	if n := f.srv.requestCount(); n != first {
		t.Errorf("release server contacted inside the interval (%d -> %d requests)", first, n)
	}

	f.clock.Advance(31 * time.Minute)
	polled, _, err = u.Poll(context.Background(), PollOptions{Interval: time.Hour})
	if err != nil || !polled {
		t.Fatalf("third Poll() = %v, %v", polled, err)
	}
}

func TestPoll_ForceIgnoresInterval(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor(testRunVersion))
	if err := LoadPollState(f.statePath).RecordPoll(testNow); err != nil {
		t.Fatal(err)
	}

	polled, outcome, err := f.updater(t, testRunVersion).Poll(context.Background(), PollOptions{Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !polled {
		t.Fatal("forced Poll() skipped")
	}
	// Force only bypasses the interval; equal versions are still left alone.
	if outcome.Kind != OutcomeAlreadyLatest {
		t.Errorf("outcome = %+v, want AlreadyLatest", outcome)
	}
}

func TestPoll_RecordsPollBeforeFailure(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, nil)
	polled, _, err := f.updater(t, testRunVersion).Poll(context.Background(), PollOptions{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if !polled {
		t.Error("Poll() reported no network check")
	}

	state := LoadPollState(f.statePath)
	if state.LastPoll != uint64(testNow.Unix()) {
		t.Errorf("last_poll = %d, want %d", state.LastPoll, testNow.Unix())
	}
	if state.LastUpgrade != 0 {
		t.Errorf("last_upgrade = %d after a failed poll", state.LastUpgrade)
	}
}

func TestPoll_LockHeld(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	held, err := AcquireLock(LockPathFor(f.installed, "viberails"), discardLogger())
	if err != nil || held == nil {
		t.Fatalf("AcquireLock() = %v, %v", held, err)
	}
	defer held.Release()

	polled, outcome, err := f.updater(t, testRunVersion).Poll(context.Background(), PollOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if polled || outcome.Kind != OutcomeInProgress {
		t.Errorf("Poll() = %v, %+v; want skipped InProgress", polled, outcome)
	}
	if n := f.srv.requestCount(); n != 0 {
		t.Errorf("release server contacted %d times", n)
	}
	if st := LoadPollState(f.statePath); st.LastPoll != 0 {
		t.Errorf("poll recorded while the lock was held: %+v", st)
	}
}
