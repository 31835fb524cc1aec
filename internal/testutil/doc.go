// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that fail fast on setup errors:
// environment variable management (MustSetenv, MustUnsetenv), filesystem setup
// (MustMkdirAll, MustWriteFile), an isolated install layout (IsolateInstall)
// and a controllable FakeClock.
package testutil
