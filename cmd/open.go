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
var openCmd = &cobra.Command{
	Use:   "open <symbol>",
	Short: "Manually enter a position at current market prices",
	Long: `Buys the spot leg and sells the futures leg of the symbol at the
current depth-weighted prices, regardless of the entry spread threshold.
If an active position exists, the volume is added to it up to the
configured max notional.

Examples:
  # Enter 200 USDT of BTCUSDT
  basis-arb open BTCUSDT --notional 200`,
	Args: cobra.ExactArgs(1),
	RunE: runOpenCmd,
}

var openNotional float64

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(openCmd)

	openCmd.Flags().Float64Var(&openNotional, "notional", 0, "Notional to enter, USDT (defaults to LOT_MIN)")
}

func runOpenCmd(cmd *cobra.Command, args []string) error {
	symbol := args[0]

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

	if openNotional <= 0 {
		openNotional = cfg.LotMin
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		_ = application.Storage().Close()
	}()

	positionID, err := application.Scheduler().ManualOpen(context.Background(), symbol, openNotional)
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}

	fmt.Printf("Entered %.2f USDT of %s into position %s\n", openNotional, symbol, positionID)

	return nil
}
