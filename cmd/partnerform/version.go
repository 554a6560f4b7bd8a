// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/partnerform/internal/schema"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of partnerform",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "partnerform %s (built-in schema v%s)\n", version, schema.Default().Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
