// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"

	// windowsExeExt is appended to executable names on Windows.
	windowsExeExt = ".exe"
)

// IsWindows reports whether goos names the Windows family, where a running
// executable cannot be overwritten in place.
func IsWindows(goos string) bool {
	return goos == Windows
}

// ExecutableExt returns the executable file extension for goos
// (".exe" on Windows, empty elsewhere).
func ExecutableExt(goos string) string {
	if IsWindows(goos) {
		return windowsExeExt
	}
	return ""
}

// ExecutableName returns base with the executable extension of the running platform.
func ExecutableName(base string) string {
	return base + ExecutableExt(runtime.GOOS)
}
