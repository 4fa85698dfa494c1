package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TM9657/flow-like-sub010/internal/cli"
	"github.com/TM9657/flow-like-sub010/internal/config"
	"github.com/TM9657/flow-like-sub010/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "flowlike",
	Short: "flowlike executes visual workflow boards",
	Long: `flowlike runs boards of nodes wired by typed pins, from the command line,
behind an HTTP API or as MCP tools.`,
	SilenceUsage: true,
}

// app is built lazily by the first command that needs it.
var app *cli.App

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if app != nil {
		if cerr := app.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, "Error closing stores:", cerr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a flowlike.yaml config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("boards", "", "Override the boards directory")
}

// getApp loads the config, applies flag overrides and opens the stores.
func getApp(cmd *cobra.Command) (*cli.App, error) {
	if app != nil {
		return app, nil
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if dir, _ := cmd.Flags().GetString("boards"); dir != "" {
		cfg.BoardsDir = dir
	}

	logger := logging.NewWithFormat(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	app, err = cli.NewApp(cmd.Context(), cfg, logger)
	return app, err
}
