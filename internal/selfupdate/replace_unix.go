// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package selfupdate

import "os"

// swapFile renames src onto dst. rename(2) within one directory is atomic:
// dst always names either the old or the new file, and processes that
// already opened the old file keep reading the old bytes.
func swapFile(src, dst string) error {
	return os.Rename(src, dst)
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync() // best effort
	_ = d.Close()
}
