// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultReplaceAttempts is the total number of AtomicReplace attempts
	// (one initial try plus four retries).
	DefaultReplaceAttempts = 5

	// DefaultReplaceDelay is the fixed pause between replace attempts.
	DefaultReplaceDelay = 5 * time.Second

	executablePerm = 0o755
)

var (
	// ErrReplace classifies a failure to swap the installed binary.
	ErrReplace = errors.New("replace failed")

	errSourceUnavailable = errors.New("source unavailable")
)

// AtomicReplace installs the file at src as dst without ever exposing a
// missing, truncated or mixed destination:
//  1. copy src into a randomly named temp file in dst's directory
//  2. mark it executable
//  3. flush it to disk (best effort)
//  4. swap it onto dst with the platform's atomic replace primitive
//  5. flush the directory (best effort)
//
// If any of steps 1-4 fails the temp file is removed and dst is untouched.
func AtomicReplace(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ErrReplace, errSourceUnavailable, err)
	}
	defer func() { _ = in.Close() }() // read-only

	dir := filepath.Dir(dst)

	tmp, err := os.CreateTemp(dir, stagingPattern(dst))
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %w", ErrReplace, dir, err)
	}
	tmpPath := tmp.Name()

	swapped := false
	defer func() {
		if !swapped {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeStaged(tmp, in); err != nil {
		return fmt.Errorf("%w: staging %s: %w", ErrReplace, tmpPath, err)
	}

	if err := swapFile(tmpPath, dst); err != nil {
		return fmt.Errorf("%w: unable to replace %s: %w", ErrReplace, dst, err)
	}
	swapped = true

	syncDir(dir)
	return nil
}

// writeStaged copies in to tmp, marks it executable, syncs and closes it.
// tmp is always closed.
func writeStaged(tmp *os.File, in io.Reader) error {
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copying: %w", err)
	}
	if err := tmp.Chmod(executablePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("making executable: %w", err)
	}
	_ = tmp.Sync() // best effort
	return tmp.Close()
}

// stagingPattern derives the os.CreateTemp pattern for dst, keeping its
// extension so Windows still recognizes the staged file as executable:
// "viberails.exe" becomes ".viberails_new_*.exe".
func stagingPattern(dst string) string {
	base := filepath.Base(dst)
	ext := filepath.Ext(base)
	return "." + strings.TrimSuffix(base, ext) + "_new_*" + ext
}

// ReplaceWithRetry runs AtomicReplace up to attempts times, sleeping delay
// between attempts, to ride out a destination that is briefly locked by a
// scanner or another process. The last error is returned once the budget is
// exhausted. A missing source is not retried.
func ReplaceWithRetry(ctx context.Context, src, dst string, attempts int, delay time.Duration, logger *slog.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := AtomicReplace(src, dst)
		if err == nil {
			return nil
		}
		logger.Warn("unable to replace binary", "path", dst, "attempt", attempt, "of", attempts, "error", err)
		if errors.Is(err, errSourceUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
