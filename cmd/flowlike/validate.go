package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/TM9657/flow-like-sub010/internal/cli"
	"github.com/TM9657/flow-like-sub010/internal/presentation/tui"
)

var validateCmd = &cobra.Command{
	Use:   "validate <board>",
	Short: "Check a board for consistency",
	Long:  `Reports broken links, type mismatches, data cycles, unknown nodes, invalid defaults and unreachable nodes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		return cli.Validate(cmd.Context(), a, args[0], cmd.OutOrStdout(), tui.NewStyler(os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
