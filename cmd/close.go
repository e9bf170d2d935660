package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/basis-arb/internal/app"
	"github.com/mselser95/basis-arb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var closeCmd = &cobra.Command{
	Use:   "close <position-id>",
	Short: "Manually close a position at current market prices",
	Long: `Closes an open position by selling the spot leg and buying back the
futures leg at the current depth-weighted prices, regardless of the exit
spread threshold.

By default the whole remaining size is closed. Use --coins to close a
part of the position.

Examples:
  # Close a position completely
  basis-arb close 2f1c9a4e-...

  # Close 0.5 coins of a position
  basis-arb close 2f1c9a4e-... --coins 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runCloseCmd,
}

var closeCoins float64

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(closeCmd)

	closeCmd.Flags().Float64Var(&closeCoins, "coins", 0, "Coins to close (0 closes the whole remaining size)")
}

func runCloseCmd(cmd *cobra.Command, args []string) error {
	positionID := args[0]

	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		_ = application.Storage().Close()
	}()

	pnl, err := application.Scheduler().ManualClose(context.Background(), positionID, closeCoins)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}

	pnlSign := ""
	if pnl > 0 {
		pnlSign = "+"
	}
	fmt.Printf("Closed %s with realized PnL %s%.2f USDT\n", positionID, pnlSign, pnl)

	return nil
}
