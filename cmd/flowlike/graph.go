package main

import (
	"github.com/spf13/cobra"

	"github.com/TM9657/flow-like-sub010/internal/cli"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <board>",
	Short: "Export the board visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the board: execution edges solid, data edges dotted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		return cli.Graph(cmd.Context(), a, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
