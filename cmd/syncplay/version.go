// ABOUTME: version command
// ABOUTME: Prints product, version and manufacturer
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/decamp/drawjav-sub002/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
