// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/charmbracelet/lipgloss"

// Shared palette for CLI output, tuned for dark terminal backgrounds.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED") // purple: titles
	ColorMuted     = lipgloss.Color("#6B7280") // gray: hints and defaults
	ColorSuccess   = lipgloss.Color("#10B981") // green: completed upgrades
	ColorError     = lipgloss.Color("#EF4444") // red: failures
	ColorWarning   = lipgloss.Color("#F59E0B") // amber: in-progress and skipped upgrades
	ColorHighlight = lipgloss.Color("#3B82F6") // blue: config keys
)

// Base styles built from the palette.
var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary text and "(using defaults)" markers.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// KeyStyle is for configuration keys and labels.
	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)
