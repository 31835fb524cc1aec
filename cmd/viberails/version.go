// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(_ *App) *cobra.Command {
	return &cobra.Command{
		Use:   versionCommandName,
		Short: "Print the viberails version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "viberails %s %s/%s\n", getVersionString(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
