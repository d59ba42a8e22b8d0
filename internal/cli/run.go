package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking service with its HTTP API",
	Long: `Starts the trackers listed in the configuration and serves the HTTP
control surface, including the websocket stream. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}
