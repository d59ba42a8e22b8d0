package cli

import (
	"github.com/spf13/cobra"
)

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "List tradable USD pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Pairs(cmd.Context())
	},
}
