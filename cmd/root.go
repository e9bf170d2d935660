package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "basis-arb",
	Short: "Spot/futures basis arbitrage bot",
	Long: `Basis arbitrage bot that monitors spot and futures order books across
exchanges, computes depth-weighted entry and exit spreads for configured
pairs, and opens hedged positions when the basis exceeds the entry
threshold.

Positions are legged in as a spot buy hedged by a futures sell, tracked in
a ledger, and unwound when the exit spread crosses the exit threshold.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
