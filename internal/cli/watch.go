package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"pairwatch/internal/app"
)

var (
	watchPair     string
	watchUnits    float64
	watchMarkup   float64
	watchBuyIn    float64
	watchDuration time.Duration
	watchPNGPath  string
	watchCSVPath  string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a single pair in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchPair == "" {
			return errors.New("--pair is required")
		}

		opts := app.WatchOptions{
			Pair:          watchPair,
			Units:         watchUnits,
			MarkupPercent: watchMarkup,
			BuyIn:         watchBuyIn,
			Duration:      watchDuration,
			PNGPath:       watchPNGPath,
			CSVPath:       watchCSVPath,
		}
		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchPair, "pair", "", "Pair to track, e.g. XXBTZUSD")
	watchCmd.Flags().Float64Var(&watchUnits, "units", 0, "Units held (defaults to config)")
	watchCmd.Flags().Float64Var(&watchMarkup, "markup", 0, "Sell bonus percent over the starting value (defaults to config)")
	watchCmd.Flags().Float64Var(&watchBuyIn, "buy-in", 0, "Buy-in alert threshold in USD (defaults to config)")
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "How long to watch (0 = until interrupted)")
	watchCmd.Flags().StringVar(&watchPNGPath, "png", "", "Path to write a PNG chart of the final window")
	watchCmd.Flags().StringVar(&watchCSVPath, "csv", "", "Path to write the final window as CSV")
}
