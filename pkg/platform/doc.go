// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// It centralizes GOOS names and executable naming so that callers building
// file names for installed binaries, helper copies and release artifacts agree
// on the ".exe" suffix rules.
package platform
