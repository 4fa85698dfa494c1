package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	flowlike "github.com/TM9657/flow-like-sub010"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flowlike",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flowlike version %s\n", strings.TrimSpace(flowlike.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
