// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/viberails/viberails/pkg/platform"
)

// EnvUpgradeHelper is set in the environment of a spawned upgrade helper so
// the helper knows its parent may still be releasing the upgrade lock.
const EnvUpgradeHelper = "VB_UPGRADE_HELPER"

// ErrSpawn classifies a failure to launch the detached upgrade helper.
var ErrSpawn = errors.New("spawn failed")

// spawnProcess launches a detached process. Tests replace it to observe the
// helper invocation without starting anything.
//
//nolint:gochecknoglobals // Test seam for process spawning.
var spawnProcess = spawnDetached

// helperPrefix returns the file name prefix shared by all helper copies.
func helperPrefix(project string) string {
	return project + "_upgrade_"
}

// HelperPath returns a fresh, unpredictable helper path in dir, e.g.
// "dir/viberails_upgrade_1a2b3c4d". The random suffix keeps an attacker from
// planting a binary at the path before we write it.
func HelperPath(dir, project, goos string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return filepath.Join(dir, helperPrefix(project)+suffix+platform.ExecutableExt(goos))
}

// CleanupHelpers removes helper binaries left in dir by earlier upgrades.
// Failures are ignored: a helper that is still running on Windows cannot be
// deleted and will be collected next time.
func CleanupHelpers(dir, project string, logger *slog.Logger) {
	matches, err := filepath.Glob(filepath.Join(dir, helperPrefix(project)+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			logger.Debug("unable to remove previous upgrade helper", "path", m, "error", err)
			continue
		}
		logger.Debug("removed previous upgrade helper", "path", m)
	}
}

// copyExecutable copies src to a new file at dst with executable permissions.
func copyExecutable(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }() // read-only

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, executablePerm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Chmod(executablePerm)
}

// spawnDetached starts path with args in a new session (Unix) or as a
// detached process (Windows), with stdio on the null device. The child is
// not waited for.
func spawnDetached(path string, args []string) error {
	cmd := exec.Command(path, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = append(os.Environ(), EnvUpgradeHelper+"=1")
	setDetachedProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", path, err)
	}
	return cmd.Process.Release()
}

// IsUpgradeHelper reports whether this process was launched as a detached
// upgrade helper.
func IsUpgradeHelper() bool {
	return os.Getenv(EnvUpgradeHelper) == "1"
}
