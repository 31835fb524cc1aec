// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/mod/semver"

	"github.com/viberails/viberails/internal/paths"
	"github.com/viberails/viberails/pkg/platform"
)

const (
	// DefaultBaseURL is the release server used when no base URL is configured.
	DefaultBaseURL = "https://releases.viberails.io/latest"

	// EnvForceUpgrade makes the exit-time poll run regardless of the interval.
	EnvForceUpgrade = "VB_FORCE_UPGRADE"
)

type (
	// Clock supplies the current time for poll bookkeeping.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// PathResolver returns an absolute filesystem path.
	PathResolver func() (string, error)

	// Updater decides whether and how to upgrade the installed binary and
	// carries the attempt out. Every method that touches the install
	// directory requires the UpgradeLock.
	Updater struct {
		project        string
		currentVersion string
		goos           string
		goarch         string

		client            *ReleaseClient
		installedPath     PathResolver
		currentExecutable PathResolver
		pollStatePath     PathResolver

		clock           Clock
		out             io.Writer
		logger          *slog.Logger
		verifier        ChecksumVerifier
		replaceAttempts int
		replaceDelay    time.Duration
		tempDir         string
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)
)

func (systemClock) Now() time.Time { return time.Now() }

// WithReleaseClient overrides the default ReleaseClient used by the Updater.
func WithReleaseClient(c *ReleaseClient) UpdaterOption {
	return func(u *Updater) {
		u.client = c
	}
}

// WithProject overrides the project name used for artifact, lock and helper names.
func WithProject(name string) UpdaterOption {
	return func(u *Updater) {
		u.project = name
	}
}

// WithPlatform overrides the target GOOS/GOARCH.
func WithPlatform(goos, goarch string) UpdaterOption {
	return func(u *Updater) {
		u.goos = goos
		u.goarch = goarch
	}
}

// WithInstalledPath sets the resolver for the fixed install location.
func WithInstalledPath(r PathResolver) UpdaterOption {
	return func(u *Updater) {
		u.installedPath = r
	}
}

// WithCurrentExecutable sets the resolver for the running executable.
func WithCurrentExecutable(r PathResolver) UpdaterOption {
	return func(u *Updater) {
		u.currentExecutable = r
	}
}

// WithPollStateFile sets the poll state file location.
func WithPollStateFile(path string) UpdaterOption {
	return func(u *Updater) {
		u.pollStatePath = func() (string, error) { return path, nil }
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) UpdaterOption {
	return func(u *Updater) {
		u.clock = c
	}
}

// WithOutput sets the writer that receives verbose progress lines.
func WithOutput(w io.Writer) UpdaterOption {
	return func(u *Updater) {
		u.out = w
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) UpdaterOption {
	return func(u *Updater) {
		u.logger = l
	}
}

// WithAllowMissingChecksum lets an upgrade proceed without a manifest
// checksum for the artifact. Unsafe.
func WithAllowMissingChecksum(allow bool) UpdaterOption {
	return func(u *Updater) {
		u.verifier.AllowMissing = allow
	}
}

// WithReplaceRetry sets the replace attempt budget and the pause between attempts.
func WithReplaceRetry(attempts int, delay time.Duration) UpdaterOption {
	return func(u *Updater) {
		u.replaceAttempts = attempts
		u.replaceDelay = delay
	}
}

// WithTempDir sets the parent directory for per-attempt download directories.
func WithTempDir(dir string) UpdaterOption {
	return func(u *Updater) {
		u.tempDir = dir
	}
}

// NewUpdater creates an Updater for the build identified by currentVersion.
// Unset options default to the real install locations, the default release
// server and AllowMissingChecksumFromEnv.
func NewUpdater(currentVersion string, opts ...UpdaterOption) *Updater {
	u := &Updater{
		project:           paths.ProjectName,
		currentVersion:    currentVersion,
		goos:              runtime.GOOS,
		goarch:            runtime.GOARCH,
		installedPath:     paths.InstalledBinaryPath,
		currentExecutable: paths.CurrentExecutablePath,
		pollStatePath:     defaultPollStatePath,
		clock:             systemClock{},
		out:               io.Discard,
		verifier:          ChecksumVerifier{AllowMissing: AllowMissingChecksumFromEnv()},
		replaceAttempts:   DefaultReplaceAttempts,
		replaceDelay:      DefaultReplaceDelay,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewReleaseClient(DefaultBaseURL)
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	u.verifier.Logger = u.logger
	return u
}

// UserAgent returns the HTTP User-Agent for project at version on this
// machine, e.g. "viberails/1.4.0 (linux; amd64)".
func UserAgent(project, version string) string {
	return fmt.Sprintf("%s/%s (%s; %s)", project, version, runtime.GOOS, runtime.GOARCH)
}

// PerformUpgrade cleans up leftover helpers, takes the upgrade lock and runs
// the upgrade. It returns OutcomeInProgress without any network I/O when
// another process holds the lock.
func (u *Updater) PerformUpgrade(ctx context.Context, force, verbose bool) (Outcome, error) {
	u.logger.Info("upgrading", "force", force, "verbose", verbose)

	lock, err := u.AcquireLock()
	if err != nil {
		return Outcome{}, err
	}
	if lock == nil {
		return Outcome{Kind: OutcomeInProgress}, nil
	}
	defer lock.Release()

	return u.Upgrade(ctx, lock, force, verbose)
}

// AcquireLock removes leftover helpers and makes one non-blocking attempt to
// take the upgrade lock. A nil lock with a nil error means the lock is held
// elsewhere.
func (u *Updater) AcquireLock() (*UpgradeLock, error) {
	if current, err := u.currentExecutable(); err == nil {
		CleanupHelpers(filepath.Dir(current), u.project, u.logger)
	}

	installed, err := u.installedPath()
	if err != nil {
		return nil, fmt.Errorf("resolving install path: %w", err)
	}
	return AcquireLock(LockPathFor(installed, u.project), u.logger)
}

// AcquireLockWithRetry calls AcquireLock up to attempts times, delay apart,
// until the lock is free. A spawned helper uses it because its parent
// releases the lock only after the helper has started.
func (u *Updater) AcquireLockWithRetry(ctx context.Context, attempts int, delay time.Duration) (*UpgradeLock, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lock *UpgradeLock
	op := func() error {
		l, err := u.AcquireLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if l == nil {
			return errLockContended
		}
		lock = l
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)
	err := backoff.Retry(op, policy)
	switch {
	case err == nil:
		return lock, nil
	case errors.Is(err, errLockContended):
		return nil, nil
	default:
		return nil, err
	}
}

// Upgrade runs the upgrade decision for a caller that already holds lock.
// A nil lock yields OutcomeInProgress before any network I/O.
func (u *Updater) Upgrade(ctx context.Context, lock *UpgradeLock, force, verbose bool) (Outcome, error) {
	if lock == nil {
		return Outcome{Kind: OutcomeInProgress}, nil
	}

	installed, err := u.installedPath()
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving install path: %w", err)
	}
	current, err := u.currentExecutable()
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving current executable: %w", err)
	}

	if platform.IsWindows(u.goos) && samePath(installed, current) {
		u.logger.Info("spawning upgrade process")
		u.progress(verbose, "Current version: %s", u.currentVersion)
		u.progress(verbose, "Spawning upgrade process in background...")
		if err := u.spawnHelper(current, force); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeSpawned}, nil
	}

	return u.selfUpgrade(ctx, installed, force, verbose)
}

// selfUpgrade resolves the release, and unless the running build is already
// current, downloads, verifies and installs the artifact.
func (u *Updater) selfUpgrade(ctx context.Context, installed string, force, verbose bool) (Outcome, error) {
	artifact := ArtifactName(u.project, u.goos, u.goarch)

	u.progress(verbose, "Current version: %s", u.currentVersion)
	u.progress(verbose, "Checking for updates...")

	manifest, err := u.client.FetchManifest(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching release manifest: %w", err)
	}

	u.progress(verbose, "Latest version:  %s", manifest.Version)

	reinstall := manifest.Version == u.currentVersion
	if reinstall && !force {
		u.logger.Info("already on latest version", "version", u.currentVersion)
		return Outcome{Kind: OutcomeAlreadyLatest, Version: u.currentVersion}, nil
	}

	if reinstall {
		u.logger.Info("force upgrade: reinstalling", "version", u.currentVersion)
		u.progress(verbose, "Force reinstalling version %s...", u.currentVersion)
	} else {
		u.warnIfDowngrade(manifest.Version)
		u.logger.Info("upgrading", "from", u.currentVersion, "to", manifest.Version)
		u.progress(verbose, "Upgrading from %s to %s...", u.currentVersion, manifest.Version)
	}

	workDir, err := os.MkdirTemp(u.tempDir, "upgrade_")
	if err != nil {
		return Outcome{}, fmt.Errorf("unable to create a temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	downloaded := filepath.Join(workDir, artifact)

	u.progress(verbose, "Downloading update...")
	if err := u.client.DownloadToFile(ctx, u.client.ArtifactURL(artifact), downloaded); err != nil {
		return Outcome{}, fmt.Errorf("downloading %s: %w", artifact, err)
	}

	u.progress(verbose, "Verifying checksum...")
	if err := u.verifier.Verify(downloaded, manifest, artifact); err != nil {
		return Outcome{}, err
	}

	u.progress(verbose, "Installing...")
	if err := ReplaceWithRetry(ctx, downloaded, installed, u.replaceAttempts, u.replaceDelay, u.logger); err != nil {
		return Outcome{}, err
	}
	u.logger.Info("installed new binary", "path", installed, "version", manifest.Version)

	u.recordUpgrade()

	if reinstall {
		return Outcome{Kind: OutcomeReinstalled, Version: manifest.Version}, nil
	}
	return Outcome{Kind: OutcomeUpgraded, From: u.currentVersion, To: manifest.Version}, nil
}

// spawnHelper copies the running executable to a fresh helper path and
// starts it detached with the upgrade sub-command.
func (u *Updater) spawnHelper(current string, force bool) error {
	helper := HelperPath(filepath.Dir(current), u.project, u.goos)

	if err := copyExecutable(current, helper); err != nil {
		return fmt.Errorf("%w: copying %s to %s: %w", ErrSpawn, current, helper, err)
	}

	args := []string{"upgrade"}
	if force {
		args = append(args, "--force")
	}

	u.logger.Info("executing upgrade helper", "path", helper, "args", strings.Join(args, " "))
	if err := spawnProcess(helper, args); err != nil {
		_ = os.Remove(helper)
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return nil
}

// recordUpgrade stamps the poll state after a successful replace. A failed
// save is logged only.
func (u *Updater) recordUpgrade() {
	statePath, err := u.pollStatePath()
	if err != nil {
		u.logger.Warn("unable to save upgrade state", "error", err)
		return
	}
	if err := LoadPollState(statePath).RecordUpgrade(u.clock.Now()); err != nil {
		u.logger.Warn("unable to save upgrade state", "error", err)
	}
}

// warnIfDowngrade logs when the release server offers a semver-older build.
// The upgrade still proceeds: any version different from ours is installed.
func (u *Updater) warnIfDowngrade(latest string) {
	cur, next := "v"+strings.TrimPrefix(u.currentVersion, "v"), "v"+strings.TrimPrefix(latest, "v")
	if semver.IsValid(cur) && semver.IsValid(next) && semver.Compare(next, cur) < 0 {
		u.logger.Warn("release server offers an older version", "current", u.currentVersion, "latest", latest)
	}
}

func (u *Updater) progress(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(u.out, format+"\n", args...)
	}
}

// samePath reports whether a and b name the same file.
func samePath(a, b string) bool {
	ai, aErr := os.Stat(a)
	bi, bErr := os.Stat(b)
	if aErr == nil && bErr == nil {
		return os.SameFile(ai, bi)
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func defaultPollStatePath() (string, error) {
	dir, err := paths.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PollStateFileName), nil
}

// ForceUpgradeFromEnv reports whether EnvForceUpgrade is set.
func ForceUpgradeFromEnv() bool {
	_, ok := os.LookupEnv(EnvForceUpgrade)
	return ok
}
