// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown
// remediation guidance, rendered with glamour, for failures the user can do
// something about.
package issue
