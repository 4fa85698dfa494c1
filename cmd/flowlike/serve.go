package main

import (
	"os"

	"github.com/spf13/cobra"

	flowlike "github.com/TM9657/flow-like-sub010"
	"github.com/TM9657/flow-like-sub010/internal/cli"
	"github.com/TM9657/flow-like-sub010/internal/presentation/tui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the run host behind a JSON API over HTTP, with Server-Sent Events
for live run events and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.Config.HTTP.Addr = addr
		}

		tui.NewStyler(os.Stderr).PrintBanner(os.Stderr, flowlike.Version)
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		if err := cli.Serve(ctx, a); err != nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			a.Logger.Info("Server stopped gracefully", "signal", sig.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides http.addr)")
}
