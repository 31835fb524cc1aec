// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// EnvAllowMissingChecksum, when set to any value, lets an upgrade proceed
	// although the manifest has no checksum for the artifact. Unsafe; every
	// use is logged at WARN.
	EnvAllowMissingChecksum = "VB_ALLOW_MISSING_CHECKSUM"

	// hashChunkSize is the read buffer used when streaming files through SHA-256.
	hashChunkSize = 64 << 10
)

var (
	// ErrChecksumMismatch indicates the computed SHA256 hash does not match the expected hash.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrChecksumMissing indicates the manifest has no checksum for the artifact.
	ErrChecksumMissing = errors.New("checksum missing")
)

type (
	// ChecksumError provides details about a checksum verification failure.
	// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}

	// MissingChecksumError reports a manifest without an entry for Artifact.
	// It wraps ErrChecksumMissing.
	MissingChecksumError struct {
		Artifact string
	}

	// ChecksumVerifier checks downloaded artifacts against a release manifest.
	// The zero value fails closed on missing checksums.
	ChecksumVerifier struct {
		// AllowMissing skips verification when the manifest lacks an entry.
		AllowMissing bool
		Logger       *slog.Logger
	}
)

// Error returns a human-readable description of the checksum mismatch,
// showing both expected and actual hash values for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Error implements the error interface.
func (e *MissingChecksumError) Error() string {
	return fmt.Sprintf("no checksum available for %s; set %s=1 to override (not recommended)", e.Artifact, EnvAllowMissingChecksum)
}

// Unwrap returns ErrChecksumMissing so callers can use errors.Is.
func (e *MissingChecksumError) Unwrap() error { return ErrChecksumMissing }

// AllowMissingChecksumFromEnv reports whether EnvAllowMissingChecksum is set.
func AllowMissingChecksumFromEnv() bool {
	_, ok := os.LookupEnv(EnvAllowMissingChecksum)
	return ok
}

// Verify checks the file at path against the manifest entry for artifact.
// A missing entry is an error unless AllowMissing is set; a mismatch is
// always an error.
func (v ChecksumVerifier) Verify(path string, manifest *ReleaseManifest, artifact string) error {
	expected, ok := manifest.Checksum(artifact)
	if !ok {
		if !v.AllowMissing {
			return &MissingChecksumError{Artifact: artifact}
		}
		logger := v.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("no checksum available, proceeding without verification",
			"artifact", artifact, "override", EnvAllowMissingChecksum)
		return nil
	}

	return VerifyFile(path, expected)
}

// VerifyFile computes the SHA256 hash of the file at path and compares it with
// expectedHash. Returns nil if the hashes match (case-insensitive comparison),
// or a *ChecksumError wrapping ErrChecksumMismatch if they differ.
func VerifyFile(path, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}

	return nil
}

// ComputeFileHash returns the lowercase hex-encoded SHA256 digest of the file
// at path, reading it in fixed-size chunks.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic (NFS edge cases).
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashChunkSize)); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
