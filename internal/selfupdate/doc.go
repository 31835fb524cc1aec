// SPDX-License-Identifier: MPL-2.0

// Package selfupdate implements the viberails self-upgrade mechanism: safely
// replacing the installed executable with a newer release while any number of
// short-lived viberails processes race to do the same.
//
// The package is organized by concern:
//   - release.go: release manifest resolution and artifact download over HTTP
//   - artifact.go: platform artifact naming
//   - checksum.go: streaming SHA-256 verification, fail-closed on missing entries
//   - replace.go: atomic replacement of the installed binary (swap primitive per OS)
//   - lock.go: machine-wide, non-blocking upgrade lock (flock / LockFileEx)
//   - holder.go: diagnostic-only liveness probe of a contending lock holder
//   - pollstate.go: persisted poll/upgrade timestamps
//   - spawn.go: detached helper process for platforms that cannot overwrite a running binary
//   - updater.go: the Updater that ties everything into an Outcome
//   - poll.go: the rate-limited exit-time poll
package selfupdate
