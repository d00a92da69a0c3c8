package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bioctl %s (interop %s)\n", version, cfg.Interop.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
