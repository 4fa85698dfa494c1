package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/TM9657/flow-like-sub010/internal/cli"
	"github.com/TM9657/flow-like-sub010/internal/presentation/tui"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <board>",
	Short: "Execute a board and stream its logs",
	Long: `Executes a board in-process. <board> is a board file (.yaml, .yml, .json)
or the id of a board in the boards directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		opts := cli.RunOptions{Board: args[0]}
		opts.StartNode, _ = cmd.Flags().GetString("start")
		opts.Payload, _ = cmd.Flags().GetString("payload")
		opts.Report, _ = cmd.Flags().GetBool("report")
		opts.Graph, _ = cmd.Flags().GetBool("graph")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunBoard(ctx, a, opts, cmd.OutOrStdout(), tui.NewStyler(os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("start", "", "Start node id (defaults to the board's first start node)")
	runCmd.Flags().String("payload", "", "JSON payload passed to the start node")
	runCmd.Flags().Bool("report", false, "Print a markdown report when the run finishes")
	runCmd.Flags().Bool("graph", false, "Print the Mermaid graph with the visited nodes highlighted")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not stream log lines")
}
