// SPDX-License-Identifier: MPL-2.0

//go:build windows

package selfupdate

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/windows"
)

// lockOffsetHigh places the locked byte at 4 GiB, past any content, so a
// contending process can still read the recorded PID.
const lockOffsetHigh = 1

// tryLockFile takes a non-blocking exclusive LockFileEx lock on one byte of f.
func tryLockFile(f *os.File) error {
	ol := &windows.Overlapped{OffsetHigh: lockOffsetHigh}
	err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) || errors.Is(err, windows.ERROR_IO_PENDING) {
			return errLockContended
		}
		return err
	}
	return nil
}

// releaseLockFile closes f, which releases the lock, then deletes path.
// Windows refuses to delete a file with open handles, so the delete fails
// harmlessly while a contender is reading the PID.
func releaseLockFile(f *os.File, path string) error {
	closeErr := f.Close()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(closeErr, err)
	}
	return closeErr
}
