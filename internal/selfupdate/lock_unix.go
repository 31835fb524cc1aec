// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package selfupdate

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// tryLockFile takes a non-blocking exclusive flock on f.
func tryLockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return errLockContended
		}
		return err
	}
	return nil
}

// releaseLockFile unlinks path while the flock is still held, then closes f
// (which drops the flock). Unlinking first guarantees that a process which
// opened the old inode cannot keep a lock nobody else can see.
func releaseLockFile(f *os.File, path string) error {
	removeErr := os.Remove(path)
	closeErr := f.Close()
	return errors.Join(removeErr, closeErr)
}
