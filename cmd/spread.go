package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var spreadCmd = &cobra.Command{
	Use:   "spread",
	Short: "Run a one-shot spread check across all configured pairs",
	Long: `Fetches the spot and futures order books for every configured pair,
computes the depth-weighted entry and exit spreads at the configured lot
size, and prints them. Does not trade and does not write to storage.

Examples:
  # Check all pairs
  basis-arb spread

  # Check a single symbol
  basis-arb spread --symbol BTCUSDT`,
	RunE: runSpreadCmd,
}

var spreadSymbol string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(spreadCmd)

	spreadCmd.Flags().StringVar(&spreadSymbol, "symbol", "", "Check only this symbol")
}

func runSpreadCmd(cmd *cobra.Command, args []string) error {
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

	gw, err := gateway.NewREST(gateway.Config{
		Exchanges: cfg.Exchanges,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	engine := spread.New(spread.Config{
		SpreadIn:  cfg.SpreadIn,
		SpreadOut: cfg.SpreadOut,
		Logger:    logger,
	})

	ctx := context.Background()
	checked := 0

	for _, pair := range cfg.Pairs {
		if spreadSymbol != "" && pair.Symbol != spreadSymbol {
			continue
		}
		checked++

		err = checkPairSpread(ctx, cfg, gw, engine, pair)
		if err != nil {
			fmt.Printf("%s: check failed: %v\n\n", pair.Symbol, err)
		}
	}

	if checked == 0 {
		return fmt.Errorf("no configured pair matches symbol %q", spreadSymbol)
	}

	return nil
}

func checkPairSpread(
	ctx context.Context,
	cfg *config.Config,
	gw gateway.Gateway,
	engine *spread.Engine,
	pair config.PairConfig,
) error {
	callCtx, cancel := context.WithTimeout(ctx, cfg.GatewayCallTimeout)
	defer cancel()

	spotBook, err := gw.FetchOrderBook(callCtx, pair.SpotExchange, gateway.Spot, pair.SpotSymbol, cfg.BookDepthLimit)
	if err != nil {
		return fmt.Errorf("fetch spot book: %w", err)
	}

	futuresBook, err := gw.FetchOrderBook(callCtx, pair.FuturesExchange, gateway.Futures, pair.FuturesSymbol, cfg.BookDepthLimit)
	if err != nil {
		return fmt.Errorf("fetch futures book: %w", err)
	}

	entry, err := engine.ComputeEntry(spotBook, futuresBook, cfg.LotMin)
	if err != nil {
		return fmt.Errorf("compute entry: %w", err)
	}

	marker := "  "
	if entry.TradeOpportunity {
		marker = "🎯"
	}

	fmt.Printf("%s %s  (%s spot / %s futures)  %s\n",
		marker, pair.Symbol, pair.SpotExchange, pair.FuturesExchange,
		entry.ComputedAt.Format(time.RFC3339))
	fmt.Printf("   Entry spread: %+.4f%%  (threshold %+.2f%%)\n", entry.EntrySpread, cfg.SpreadIn)
	fmt.Printf("   Exit spread:  %+.4f%%  (threshold %+.2f%%)\n", entry.ExitSpread, cfg.SpreadOut)
	fmt.Printf("   Spot:    ask %.6f (weighted %.6f) | bid %.6f\n",
		entry.SpotBestAsk, entry.SpotWeightedAsk, entry.SpotBestBid)
	fmt.Printf("   Futures: bid %.6f (weighted %.6f) | ask %.6f\n",
		entry.FuturesBestBid, entry.FuturesWeightedBid, entry.FuturesBestAsk)
	fmt.Printf("   Tradable: %.6f coins (%.2f USDT)\n\n", entry.TradableCoins, entry.TradableUSDT)

	return nil
}
