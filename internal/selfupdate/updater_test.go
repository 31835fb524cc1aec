// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/viberails/viberails/internal/paths"
	"github.com/viberails/viberails/internal/testutil"
)

const (
	testArtifact   = "viberails-linux-x64"
	testOldBinary  = "old binary"
	testNewBinary  = "new binary"
	testRunVersion = "1.0.0"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// updaterFixture is an isolated install: a bin directory holding the
// installed binary, a data directory for poll state and a release server.
type updaterFixture struct {
	srv       *releaseServer
	installed string
	statePath string
	clock     *testutil.FakeClock
	out       *bytes.Buffer
	logs      *logBuffer
}

func newUpdaterFixture(t *testing.T, manifest *ReleaseManifest) *updaterFixture {
	t.Helper()

	binDir := t.TempDir()
	installed := filepath.Join(binDir, "viberails")
	if err := os.WriteFile(installed, []byte(testOldBinary), 0o755); err != nil {
		t.Fatal(err)
	}

	return &updaterFixture{
		srv:       newReleaseServer(t, manifest, map[string][]byte{testArtifact: []byte(testNewBinary)}),
		installed: installed,
		statePath: filepath.Join(t.TempDir(), PollStateFileName),
		clock:     testutil.NewFakeClock(testNow),
		out:       &bytes.Buffer{},
		logs:      &logBuffer{},
	}
}

// updater builds an Updater for a linux/amd64 process running from a copy
// outside the install directory, unless opts say otherwise.
func (f *updaterFixture) updater(t *testing.T, version string, opts ...UpdaterOption) *Updater {
	t.Helper()

	running := filepath.Join(t.TempDir(), "viberails")
	if err := os.WriteFile(running, []byte(testOldBinary), 0o755); err != nil {
		t.Fatal(err)
	}

	base := []UpdaterOption{
		WithReleaseClient(NewReleaseClient(f.srv.URL)),
		WithPlatform("linux", "amd64"),
		WithInstalledPath(func() (string, error) { return f.installed, nil }),
		WithCurrentExecutable(func() (string, error) { return running, nil }),
		WithPollStateFile(f.statePath),
		WithClock(f.clock),
		WithOutput(f.out),
		WithLogger(f.logs.logger()),
		WithReplaceRetry(2, time.Millisecond),
		WithTempDir(t.TempDir()),
		WithAllowMissingChecksum(false),
	}
	return NewUpdater(version, append(base, opts...)...)
}

func (f *updaterFixture) installedContent(t *testing.T) string {
	t.Helper()

	data, err := os.ReadFile(f.installed)
	if err != nil {
		t.Fatalf("reading installed binary: %v", err)
	}
	return string(data)
}

func manifestFor(version string) *ReleaseManifest {
	return &ReleaseManifest{
		Version:   version,
		Checksums: map[string]string{testArtifact: sha256Hex([]byte(testNewBinary))},
	}
}

func TestPerformUpgrade_AlreadyLatest(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor(testRunVersion))
	outcome, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Kind != OutcomeAlreadyLatest || outcome.Version != testRunVersion {
		t.Errorf("outcome = %+v, want AlreadyLatest %s", outcome, testRunVersion)
	}
	if n := f.srv.downloadCount(testArtifact); n != 0 {
		t.Errorf("artifact downloaded %d times, want 0", n)
	}
	if got := f.installedContent(t); got != testOldBinary {
		t.Errorf("installed binary changed to %q", got)
	}
	if _, err := os.Stat(f.statePath); !os.IsNotExist(err) {
		t.Errorf("poll state written without an upgrade: %v", err)
	}
}

func TestPerformUpgrade_ForceReinstall(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor(testRunVersion))
	outcome, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Kind != OutcomeReinstalled || outcome.Version != testRunVersion {
		t.Errorf("outcome = %+v, want Reinstalled %s", outcome, testRunVersion)
	}
	if got := f.installedContent(t); got != testNewBinary {
		t.Errorf("installed binary = %q, want %q", got, testNewBinary)
	}
}

func TestPerformUpgrade_Upgraded(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	outcome, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Outcome{Kind: OutcomeUpgraded, From: testRunVersion, To: "1.1.0"}
	if outcome != want {
		t.Errorf("outcome = %+v, want %+v", outcome, want)
	}
	if got := outcome.String(); got != "Upgraded from 1.0.0 to 1.1.0" {
		t.Errorf("outcome.String() = %q", got)
	}
	if got := f.installedContent(t); got != testNewBinary {
		t.Errorf("installed binary = %q, want %q", got, testNewBinary)
	}

	state := LoadPollState(f.statePath)
	if state.LastUpgrade != uint64(testNow.Unix()) || state.LastPoll != uint64(testNow.Unix()) {
		t.Errorf("poll state = %+v, want both stamps at %d", state, testNow.Unix())
	}
	if _, err := os.Stat(LockPathFor(f.installed, "viberails")); !os.IsNotExist(err) {
		t.Errorf("lock file left behind: %v", err)
	}
}

func TestPerformUpgrade_Downgrade(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("0.9.0"))
	outcome, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Kind != OutcomeUpgraded || outcome.To != "0.9.0" {
		t.Errorf("outcome = %+v, want Upgraded to 0.9.0", outcome)
	}
	if !strings.Contains(f.logs.String(), "older version") {
		t.Errorf("downgrade not logged: %s", f.logs.String())
	}
}

func TestPerformUpgrade_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	manifest := manifestFor("1.1.0")
	manifest.Checksums[testArtifact] = sha256Hex([]byte("something else"))
	f := newUpdaterFixture(t, manifest)

	_, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("error = %v, want ErrChecksumMismatch", err)
	}
	if got := f.installedContent(t); got != testOldBinary {
		t.Errorf("installed binary changed to %q", got)
	}
	if left := stagingLeftovers(t, filepath.Dir(f.installed)); len(left) != 0 {
		t.Errorf("staging files left behind: %v", left)
	}
}

func TestPerformUpgrade_MissingChecksum(t *testing.T) {
	t.Parallel()

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		f := newUpdaterFixture(t, &ReleaseManifest{Version: "1.1.0"})
		_, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false)
		if !errors.Is(err, ErrChecksumMissing) {
			t.Fatalf("error = %v, want ErrChecksumMissing", err)
		}
		if got := f.installedContent(t); got != testOldBinary {
			t.Errorf("installed binary changed to %q", got)
		}
	})

	t.Run("override", func(t *testing.T) {
		t.Parallel()

		f := newUpdaterFixture(t, &ReleaseManifest{Version: "1.1.0"})
		u := f.updater(t, testRunVersion, WithAllowMissingChecksum(true))
		outcome, err := u.PerformUpgrade(context.Background(), false, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Kind != OutcomeUpgraded {
			t.Errorf("outcome = %+v, want Upgraded", outcome)
		}
		if !strings.Contains(f.logs.String(), "proceeding without verification") {
			t.Errorf("override not logged: %s", f.logs.String())
		}
	})
}

func TestPerformUpgrade_NetworkFailure(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, nil)
	_, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if got := f.installedContent(t); got != testOldBinary {
		t.Errorf("installed binary changed to %q", got)
	}
}

func TestPerformUpgrade_LockHeld(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	held, err := AcquireLock(LockPathFor(f.installed, "viberails"), discardLogger())
	if err != nil || held == nil {
		t.Fatalf("AcquireLock() = %v, %v", held, err)
	}
	defer held.Release()

	outcome, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), true, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeInProgress {
		t.Errorf("outcome = %+v, want InProgress", outcome)
	}
	if n := f.srv.requestCount(); n != 0 {
		t.Errorf("release server contacted %d times while the lock was held", n)
	}
}

func TestUpgrade_NilLock(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	outcome, err := f.updater(t, testRunVersion).Upgrade(context.Background(), nil, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != OutcomeInProgress {
		t.Errorf("outcome = %+v, want InProgress", outcome)
	}
	if n := f.srv.requestCount(); n != 0 {
		t.Errorf("release server contacted %d times", n)
	}
}

func TestPerformUpgrade_VerboseProgress(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	if _, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"Current version: 1.0.0",
		"Checking for updates...",
		"Latest version:  1.1.0",
		"Upgrading from 1.0.0 to 1.1.0...",
		"Downloading update...",
		"Verifying checksum...",
		"Installing...",
	}
	got := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("progress lines:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestPerformUpgrade_QuietWithoutVerbose(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor("1.1.0"))
	if _, err := f.updater(t, testRunVersion).PerformUpgrade(context.Background(), false, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.out.Len() != 0 {
		t.Errorf("non-verbose upgrade printed %q", f.out.String())
	}
}

func TestPerformUpgrade_CleansUpHelpers(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor(testRunVersion))
	runDir := t.TempDir()
	running := filepath.Join(runDir, "viberails")
	leftover := filepath.Join(runDir, "viberails_upgrade_deadbeef")
	for _, p := range []string{running, leftover} {
		if err := os.WriteFile(p, []byte(testOldBinary), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	u := f.updater(t, testRunVersion, WithCurrentExecutable(func() (string, error) { return running, nil }))
	if _, err := u.PerformUpgrade(context.Background(), false, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Errorf("leftover helper not removed: %v", err)
	}
	if _, err := os.Stat(running); err != nil {
		t.Errorf("running executable removed: %v", err)
	}
}

func TestAcquireLockWithRetry(t *testing.T) {
	t.Parallel()

	f := newUpdaterFixture(t, manifestFor(testRunVersion))
	u := f.updater(t, testRunVersion)

	held, err := AcquireLock(LockPathFor(f.installed, "viberails"), discardLogger())
	if err != nil || held == nil {
		t.Fatalf("AcquireLock() = %v, %v", held, err)
	}

	l, err := u.AcquireLockWithRetry(context.Background(), 3, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != nil {
		t.Fatal("acquired a lock that is still held")
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		held.Release()
		close(released)
	}()

	l, err = u.AcquireLockWithRetry(context.Background(), 100, 10*time.Millisecond)
	<-released
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("lock not acquired after the holder released it")
	}
	l.Release()
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	if got := UserAgent("viberails", "1.2.3"); !strings.HasPrefix(got, "viberails/1.2.3 (") {
		t.Errorf("UserAgent() = %q", got)
	}
}

func TestNewUpdater_DefaultLocations(t *testing.T) {
	// Not parallel: IsolateInstall rewrites the process environment.
	inst := testutil.IsolateInstall(t)

	installed, err := paths.InstalledBinaryPath()
	if err != nil {
		t.Fatalf("InstalledBinaryPath() = %v", err)
	}
	testutil.MustWriteFile(t, installed, []byte(testOldBinary), 0o755)

	srv := newReleaseServer(t, manifestFor("1.1.0"), map[string][]byte{testArtifact: []byte(testNewBinary)})
	running := filepath.Join(t.TempDir(), "viberails")
	testutil.MustWriteFile(t, running, []byte(testOldBinary), 0o755)

	u := NewUpdater(testRunVersion,
		WithReleaseClient(NewReleaseClient(srv.URL)),
		WithPlatform("linux", "amd64"),
		WithCurrentExecutable(func() (string, error) { return running, nil }),
		WithLogger(discardLogger()),
		WithAllowMissingChecksum(false),
	)

	outcome, err := u.PerformUpgrade(context.Background(), false, false)
	if err != nil {
		t.Fatalf("PerformUpgrade() = %v", err)
	}
	if outcome.Kind != OutcomeUpgraded {
		t.Fatalf("outcome = %+v, want Upgraded", outcome)
	}

	if filepath.Dir(installed) != inst.BinDir {
		t.Errorf("installed path %s not under %s", installed, inst.BinDir)
	}
	data, err := os.ReadFile(installed)
	if err != nil || string(data) != testNewBinary {
		t.Errorf("installed = %q, %v", data, err)
	}

	f, err := os.Open(filepath.Join(inst.Data, PollStateFileName))
	if err != nil {
		t.Fatalf("poll state not written to the data dir: %v", err)
	}
	testutil.MustClose(t, f)
}
