package main

import (
	"github.com/spf13/cobra"

	"github.com/TM9657/flow-like-sub010/internal/cli"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
	Long:  `List run records from the configured store and run summaries from the log store.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the runs of an app, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		appID, _ := cmd.Flags().GetString("app")
		if appID == "" {
			appID = a.Config.AppID
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return cli.ListRuns(cmd.Context(), a, appID, limit, cmd.OutOrStdout())
	},
}

var runsHistoryCmd = &cobra.Command{
	Use:   "history <board>",
	Short: "List the logged runs of a board, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		return cli.History(cmd.Context(), a, args[0], limit, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsHistoryCmd)

	runsCmd.PersistentFlags().Int("limit", 20, "Maximum number of runs to show")
	runsListCmd.Flags().String("app", "", "App id (defaults to app_id from the config)")
}
