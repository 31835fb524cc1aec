// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// probeTimeout bounds the liveness probe of a contending lock holder.
const probeTimeout = 2 * time.Second

// processAlive reports whether pid names a running process.
//
//nolint:gochecknoglobals // Test seam for the liveness probe.
var processAlive = func(ctx context.Context, pid int32) bool {
	alive, err := process.PidExistsWithContext(ctx, pid)
	return err == nil && alive
}

// reportLockHolder logs who holds the upgrade lock. It is diagnostic only:
// the result never decides whether the lock can be taken, because the
// holder's state may change between the probe and any action on it. A dead
// holder's lock is released by the OS on its own.
func reportLockHolder(f *os.File, path string, logger *slog.Logger) {
	pid, ok := readHolderPID(f)
	if !ok {
		logger.Info("upgrade already in progress", "lock", path)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if processAlive(ctx, pid) {
		logger.Info("upgrade already in progress", "lock", path, "pid", pid)
		return
	}
	logger.Warn("stale lock: recorded holder is not running, the OS will release it",
		"lock", path, "pid", pid)
}

// readHolderPID parses the PID recorded in the lock file.
func readHolderPID(f *os.File) (int32, bool) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, false
	}
	data, err := io.ReadAll(io.LimitReader(f, 32))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || pid <= 0 || pid > math.MaxInt32 {
		return 0, false
	}
	return int32(pid), true
}
