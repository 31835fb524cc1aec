// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for viberails.
//
// This package implements the Cobra command hierarchy for the viberails CLI:
// the root command, the upgrade, config and version subcommands, and the
// exit-time upgrade poll that runs after every other command.
package cmd
