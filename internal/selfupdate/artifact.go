// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"fmt"

	"github.com/viberails/viberails/pkg/platform"
)

// releaseOSNames maps GOOS values to the OS codes used by the release server.
//
//nolint:gochecknoglobals // Read-only lookup table.
var releaseOSNames = map[string]string{
	platform.Darwin: "macos",
}

// NormalizeArch maps a CPU architecture identifier to the short code used in
// artifact names. Both Go (amd64, arm64) and uname-style (x86_64, aarch64)
// identifiers are accepted; anything unrecognized is returned unchanged.
func NormalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64":
		return "x64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// NormalizeOS maps a GOOS value to the release server's OS code.
func NormalizeOS(goos string) string {
	if name, ok := releaseOSNames[goos]; ok {
		return name
	}
	return goos
}

// ArtifactName returns the release artifact file name for project on the
// given platform, e.g. "viberails-linux-x64" or "viberails-windows-arm64.exe".
func ArtifactName(project, goos, goarch string) string {
	return fmt.Sprintf("%s-%s-%s%s", project, NormalizeOS(goos), NormalizeArch(goarch), platform.ExecutableExt(goos))
}
