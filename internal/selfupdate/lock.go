// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// maxLockOpenAttempts bounds the re-open loop used when the lock file was
// unlinked by the previous holder between our open and our lock.
const maxLockOpenAttempts = 3

// errLockContended is returned by the platform tryLockFile when another
// process holds the lock.
var errLockContended = errors.New("upgrade lock held by another process")

// UpgradeLock is a machine-wide exclusive lock serializing upgrade attempts.
// It is an OS advisory lock (flock on Unix, LockFileEx on Windows) on a file
// next to the installed binary, so the OS drops it when the holder exits or
// crashes. The holder's PID is written into the file for diagnostics only.
type UpgradeLock struct {
	file   *os.File
	path   string
	logger *slog.Logger
}

// LockFileName returns the lock file name for project, e.g.
// ".viberails.upgrade.lock".
func LockFileName(project string) string {
	return "." + project + ".upgrade.lock"
}

// LockPathFor returns the lock file path for the binary installed at
// installedPath.
func LockPathFor(installedPath, project string) string {
	return filepath.Join(filepath.Dir(installedPath), LockFileName(project))
}

// AcquireLock makes a single non-blocking attempt to take the upgrade lock at
// path. It returns (nil, nil) when another process holds the lock: the
// caller treats that as "an upgrade is already in progress". Other I/O
// failures are returned as errors.
func AcquireLock(path string, logger *slog.Logger) (*UpgradeLock, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for range maxLockOpenAttempts {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("unable to open lock file %s: %w", path, err)
		}

		if err := tryLockFile(f); err != nil {
			if errors.Is(err, errLockContended) {
				reportLockHolder(f, path, logger)
				_ = f.Close()
				return nil, nil
			}
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, err)
		}

		// A departing holder unlinks the file while still holding it, so we
		// may have locked an orphaned inode. Only the file at path counts.
		if !lockedFileIsCurrent(f, path) {
			_ = f.Close()
			continue
		}

		l := &UpgradeLock{file: f, path: path, logger: logger}
		if err := l.writePID(); err != nil {
			l.Release()
			return nil, fmt.Errorf("unable to record pid in %s: %w", path, err)
		}
		logger.Debug("acquired upgrade lock", "path", path, "pid", os.Getpid())
		return l, nil
	}

	logger.Debug("lock file kept changing under us, treating as contended", "path", path)
	return nil, nil
}

// Path returns the lock file path.
func (l *UpgradeLock) Path() string {
	return l.path
}

// Release drops the lock and deletes the lock file. It is nil-safe and safe
// to call multiple times; subsequent calls are no-ops.
func (l *UpgradeLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := releaseLockFile(l.file, l.path); err != nil {
		l.logger.Debug("upgrade lock release incomplete", "path", l.path, "error", err)
	}
	l.file = nil
}

// writePID truncates the lock file and records the current process id.
func (l *UpgradeLock) writePID() error {
	if err := l.file.Truncate(0); err != nil {
		return err
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return err
	}
	if _, err := l.file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return err
	}
	return l.file.Sync()
}

// lockedFileIsCurrent reports whether f is still the file linked at path.
func lockedFileIsCurrent(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}
