// SPDX-License-Identifier: MPL-2.0

// Package logging builds the slog.Logger used across viberails. Records are
// handled by a charmbracelet/log logger that writes styled text to stderr in
// verbose mode and logfmt to a size-rotated file otherwise.
package logging
