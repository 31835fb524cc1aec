// SPDX-License-Identifier: MPL-2.0

package paths

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/viberails/viberails/pkg/platform"
)

const (
	// ProjectName is the canonical project and executable base name.
	ProjectName = "viberails"

	// EnvDataDir overrides the data directory.
	EnvDataDir = "VIBERAILS_DATA_DIR"
	// EnvConfigDir overrides the config directory.
	EnvConfigDir = "VIBERAILS_CONFIG_DIR"
	// EnvBinDir overrides the binary install directory.
	EnvBinDir = "VIBERAILS_BIN_DIR"

	secureDirPerm = 0o700
	binDirPerm    = 0o755
)

// ErrInvalidDirOverride is the sentinel error wrapped by InvalidDirOverrideError.
var ErrInvalidDirOverride = errors.New("invalid directory override")

var (
	//nolint:gochecknoglobals // Test seam for os.UserHomeDir().
	userHomeDir = os.UserHomeDir

	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for the passwd home lookup.
	passwdHomeDir = func() (string, error) {
		u, err := user.Current()
		if err != nil {
			return "", err
		}
		return u.HomeDir, nil
	}
)

// InvalidDirOverrideError reports a rejected VIBERAILS_*_DIR value.
type InvalidDirOverrideError struct {
	Env    string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidDirOverrideError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Env, e.Reason, e.Value)
}

// Unwrap returns ErrInvalidDirOverride so callers can use errors.Is.
func (e *InvalidDirOverrideError) Unwrap() error { return ErrInvalidDirOverride }

// ValidateDirOverride checks that value, read from the environment variable
// env, is an absolute path free of parent directory references. The raw
// value is inspected before any cleaning so that "/a/../b" is rejected.
func ValidateDirOverride(env, value string) (string, error) {
	if !filepath.IsAbs(value) {
		return "", &InvalidDirOverrideError{Env: env, Value: value, Reason: "must be an absolute path"}
	}

	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r < utf8.RuneSelf && os.IsPathSeparator(uint8(r)) }) {
		if part == ".." {
			return "", &InvalidDirOverrideError{Env: env, Value: value, Reason: "contains parent directory references"}
		}
	}

	return filepath.Clean(value), nil
}

// lookupOverride returns the validated override from env, or "" when unset.
func lookupOverride(env string) (string, error) {
	value, ok := os.LookupEnv(env)
	if !ok || value == "" {
		return "", nil
	}
	dir, err := ValidateDirOverride(env, value)
	if err != nil {
		return "", err
	}
	slog.Debug("using directory override", "env", env, "path", dir)
	return dir, nil
}

// DataDirPath resolves the data directory without creating it.
func DataDirPath() (string, error) {
	if dir, err := lookupOverride(EnvDataDir); err != nil || dir != "" {
		return dir, err
	}

	var base string
	switch runtime.GOOS {
	case platform.Windows:
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, err := userHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, "AppData", "Local")
		}
	case platform.Darwin:
		home, err := userHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_DATA_HOME")
		if base == "" {
			home, err := userHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".local", "share")
		}
	}

	return filepath.Join(base, ProjectName), nil
}

// DataDir resolves the data directory and creates it with owner-only
// permissions if needed.
func DataDir() (string, error) {
	dir, err := DataDirPath()
	if err != nil {
		return "", err
	}
	if err := EnsureSecureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigDirOverride returns the validated VIBERAILS_CONFIG_DIR value, or ""
// when the variable is unset.
func ConfigDirOverride() (string, error) {
	return lookupOverride(EnvConfigDir)
}

// EnsureSecureDir creates dir (and parents) with mode 0700 and tightens the
// mode of an already existing directory. Permission bits are ignored on
// Windows.
func EnsureSecureDir(dir string) error {
	if err := os.MkdirAll(dir, secureDirPerm); err != nil {
		return fmt.Errorf("unable to create directory %s: %w", dir, err)
	}
	if runtime.GOOS == platform.Windows {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("unable to stat directory %s: %w", dir, err)
	}
	if info.Mode().Perm() != secureDirPerm {
		slog.Debug("fixing directory permissions", "path", dir, "current", fmt.Sprintf("%o", info.Mode().Perm()))
		if err := os.Chmod(dir, secureDirPerm); err != nil {
			return fmt.Errorf("unable to set permissions on directory %s: %w", dir, err)
		}
	}
	return nil
}

// BinDir returns the binary install directory, creating it when missing.
func BinDir() (string, error) {
	dir, err := lookupOverride(EnvBinDir)
	if err != nil {
		return "", err
	}

	if dir == "" {
		home, homeErr := validatedHome()
		if homeErr != nil {
			return "", homeErr
		}
		dir = filepath.Join(home, ".local", "bin")
	}

	if err := os.MkdirAll(dir, binDirPerm); err != nil {
		return "", fmt.Errorf("unable to create %s: %w", dir, err)
	}
	return dir, nil
}

// InstalledBinaryPath returns the fixed path of the executable users run.
func InstalledBinaryPath() (string, error) {
	dir, err := BinDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, platform.ExecutableName(ProjectName)), nil
}

// CurrentExecutablePath returns the absolute, symlink-resolved path of the
// running process image.
func CurrentExecutablePath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}
	return resolved, nil
}

// validatedHome returns the user's home directory. On Unix the passwd entry
// wins over a $HOME that points elsewhere, so a doctored environment cannot
// redirect the install location.
func validatedHome() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine home directory: %w", err)
	}

	if runtime.GOOS != platform.Windows {
		if pw, pwErr := passwdHomeDir(); pwErr == nil && pw != "" && !sameDir(pw, home) {
			slog.Warn("HOME differs from passwd entry, using passwd entry", "home", home, "passwd", pw)
			home = pw
		}
	}

	if _, err := ValidateDirOverride("HOME", home); err != nil {
		return "", err
	}
	return home, nil
}

func sameDir(a, b string) bool {
	if ra, err := filepath.EvalSymlinks(a); err == nil {
		a = ra
	}
	if rb, err := filepath.EvalSymlinks(b); err == nil {
		b = rb
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
