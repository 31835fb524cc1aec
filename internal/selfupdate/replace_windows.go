// SPDX-License-Identifier: MPL-2.0

//go:build windows

package selfupdate

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// swapFile replaces dst with src via MoveFileEx. MOVEFILE_REPLACE_EXISTING
// makes the replace atomic for an existing destination and
// MOVEFILE_WRITE_THROUGH keeps the call from returning before the move is
// flushed to disk.
func swapFile(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", src, err)
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", dst, err)
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

// syncDir is a no-op: MOVEFILE_WRITE_THROUGH already made the move durable.
func syncDir(string) {}
