package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/internal/storage"
	"github.com/mselser95/basis-arb/pkg/config"
	"github.com/mselser95/basis-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display open and recently closed positions",
	Long: `Lists positions from storage with their entry volumes, remaining size
and realized PnL.

Examples:
  # Show open positions (default)
  basis-arb positions

  # Show positions closed in the last 30 days
  basis-arb positions --closed --days 30

  # Export to JSON
  basis-arb positions --format json`,
	RunE: runPositionsCmd,
}

var (
	showClosed      bool
	closedSinceDays int
	positionsFormat string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)

	positionsCmd.Flags().BoolVar(&showClosed, "closed", false, "Show closed positions instead of open ones")
	positionsCmd.Flags().IntVar(&closedSinceDays, "days", 7, "How many days back to look for closed positions")
	positionsCmd.Flags().StringVar(&positionsFormat, "format", "table", "Output format: table, json")
}

func runPositionsCmd(cmd *cobra.Command, args []string) error {
	if positionsFormat != "table" && positionsFormat != "json" {
		return fmt.Errorf("invalid format: %s (valid: table, json)", positionsFormat)
	}
	if showClosed && closedSinceDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	store, logger, err := openStorage()
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
		_ = logger.Sync()
	}()

	ctx := context.Background()

	var positions []*types.Position
	if showClosed {
		positions, err = store.ClosedPositions(ctx, closedSinceDays)
	} else {
		positions, err = store.OpenPositions(ctx)
	}
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	if len(positions) == 0 {
		fmt.Println("No positions found")
		return nil
	}

	if positionsFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(positions)
	}

	displayPositionsTable(positions)
	return nil
}

func displayPositionsTable(positions []*types.Position) {
	var totalPnL float64

	fmt.Printf("Positions (%d)\n", len(positions))
	fmt.Println("================================================================================")

	for _, p := range positions {
		fmt.Printf("%s  %s  [%s]\n", p.ID, p.Symbol, p.Status)
		fmt.Printf("   Venues: %s spot / %s futures\n", p.SpotExchange, p.FuturesExchange)
		fmt.Printf("   Entered: %.6f coins | spot %.2f USDT | futures %.2f USDT\n",
			p.SpotCoins, p.SpotUSDT, p.FuturesUSDT)
		fmt.Printf("   Remaining: %.6f coins | entry spread %.4f%%\n",
			p.RemainingSpotCoins, p.InitialEntrySpread)

		pnlSign := ""
		if p.PnLUSDT > 0 {
			pnlSign = "+"
		}
		fmt.Printf("   PnL: %s%.2f USDT\n", pnlSign, p.PnLUSDT)

		if p.ClosedAt != nil {
			fmt.Printf("   Closed: %s\n", p.ClosedAt.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Println()

		totalPnL += p.PnLUSDT
	}

	totalSign := ""
	if totalPnL > 0 {
		totalSign = "+"
	}
	fmt.Println("--------------------------------------------------------------------------------")
	fmt.Printf("Total PnL: %s%.2f USDT\n", totalSign, totalPnL)
}

// openStorage loads config and opens the configured storage backend.
// Shared by the administrative commands, which do not need the full app.
func openStorage() (storage.Storage, *zap.Logger, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	if cfg.StorageMode == "postgres" {
		store, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return store, logger, nil
	}

	return storage.NewConsoleStorage(logger), logger, nil
}
