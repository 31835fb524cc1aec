// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// Install is a throwaway viberails layout rooted in a test temp directory.
type Install struct {
	Home   string
	BinDir string
	Data   string
	Config string
}

// IsolateInstall points HOME and the VIBERAILS_*_DIR overrides at fresh
// directories under t.TempDir and restores them when the test ends. Tests
// calling it must not run in parallel.
func IsolateInstall(t testing.TB) Install {
	t.Helper()

	root := t.TempDir()
	inst := Install{
		Home:   filepath.Join(root, "home"),
		BinDir: filepath.Join(root, "bin"),
		Data:   filepath.Join(root, "data"),
		Config: filepath.Join(root, "config"),
	}
	MustMkdirAll(t, inst.Home, 0o755)

	homeVar := "HOME"
	if runtime.GOOS == "windows" {
		homeVar = "USERPROFILE"
	}
	t.Cleanup(MustSetenv(t, homeVar, inst.Home))
	t.Cleanup(MustSetenv(t, "VIBERAILS_BIN_DIR", inst.BinDir))
	t.Cleanup(MustSetenv(t, "VIBERAILS_DATA_DIR", inst.Data))
	t.Cleanup(MustSetenv(t, "VIBERAILS_CONFIG_DIR", inst.Config))

	return inst
}
