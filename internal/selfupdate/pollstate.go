// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// PollStateFileName is the poll state file inside the data directory.
	PollStateFileName = "upgrade_state.json"

	// DefaultPollInterval is the minimum time between two network polls.
	DefaultPollInterval = time.Hour

	pollStatePerm = 0o600
)

// PollState records when viberails last consulted the release server and
// when it last replaced itself. Timestamps are Unix seconds; zero means
// never. A PollState is an explicit value: load it, mutate it, and it
// persists itself to the path it was loaded from.
type PollState struct {
	LastPoll    uint64 `json:"last_poll"`
	LastUpgrade uint64 `json:"last_upgrade"`

	path string
}

// LoadPollState reads the state file at path. A missing or malformed file
// yields the zero state; loading never fails.
func LoadPollState(path string) *PollState {
	s := &PollState{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	var decoded PollState
	if err := json.Unmarshal(data, &decoded); err != nil {
		return s
	}

	s.LastPoll = decoded.LastPoll
	s.LastUpgrade = decoded.LastUpgrade
	return s
}

// Path returns the file the state is persisted to.
func (s *PollState) Path() string {
	return s.path
}

// ShouldPoll reports whether at least interval has elapsed since the last
// poll. A never-polled state is always due. A LastPoll in the future (clock
// moved backwards) counts as zero elapsed time.
func (s *PollState) ShouldPoll(now time.Time, interval time.Duration) bool {
	if s.LastPoll == 0 {
		return true
	}

	var elapsed uint64
	if nowSecs := unixSeconds(now); nowSecs > s.LastPoll {
		elapsed = nowSecs - s.LastPoll
	}
	return time.Duration(elapsed)*time.Second >= interval
}

// RecordPoll stamps LastPoll with now and persists the state.
func (s *PollState) RecordPoll(now time.Time) error {
	s.LastPoll = unixSeconds(now)
	return s.Save()
}

// RecordUpgrade stamps both timestamps with now and persists the state.
func (s *PollState) RecordUpgrade(now time.Time) error {
	secs := unixSeconds(now)
	s.LastPoll = secs
	s.LastUpgrade = secs
	return s.Save()
}

// Save writes the state as JSON with owner-only permissions. Callers log a
// failed save and carry on.
func (s *PollState) Save() error {
	if s.path == "" {
		return fmt.Errorf("poll state has no backing file")
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to serialize upgrade state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("unable to create %s: %w", filepath.Dir(s.path), err)
	}

	if err := os.WriteFile(s.path, data, pollStatePerm); err != nil {
		return fmt.Errorf("unable to write %s: %w", s.path, err)
	}

	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.path, pollStatePerm); err != nil {
		return fmt.Errorf("unable to set permissions on %s: %w", s.path, err)
	}

	return nil
}

func unixSeconds(t time.Time) uint64 {
	secs := t.Unix()
	if secs < 0 {
		return 0
	}
	return uint64(secs)
}
