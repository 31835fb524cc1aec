// SPDX-License-Identifier: MPL-2.0

// Package paths resolves the filesystem locations viberails works with: the
// per-user data directory (poll state, logs), the binary install directory
// (~/.local/bin by default) and the installed and currently running
// executables.
//
// Every location can be redirected through a VIBERAILS_*_DIR environment
// variable. Overrides must be absolute and must not contain ".." components.
package paths
