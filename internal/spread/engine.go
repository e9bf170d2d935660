// Package spread computes entry and exit spreads between a spot and a
// futures order book from depth-weighted execution prices.
package spread

import (
	"time"

	"github.com/mselser95/basis-arb/internal/depth"
	"github.com/mselser95/basis-arb/pkg/types"
	"go.uber.org/zap"
)

// Engine computes spreads and flags opportunities against the
// configured thresholds.
type Engine struct {
	spreadIn  float64
	spreadOut float64
	logger    *zap.Logger
}

// Config holds engine configuration.
type Config struct {
	SpreadIn  float64 // entry threshold, percent
	SpreadOut float64 // exit threshold, percent
	Logger    *zap.Logger
}

// New creates a new spread engine.
func New(cfg Config) *Engine {
	return &Engine{
		spreadIn:  cfg.SpreadIn,
		spreadOut: cfg.SpreadOut,
		logger:    cfg.Logger,
	}
}

// ComputeEntry walks the spot asks for targetNotional USDT, then the
// futures bids for the coin quantity that buy would produce, and
// derives the entry spread between the two weighted prices. Books are
// validated first; a malformed book is rejected, never processed.
func (e *Engine) ComputeEntry(spotBook, futuresBook *types.OrderBook, targetNotional float64) (*EntryResult, error) {
	if err := spotBook.Validate(); err != nil {
		return nil, err
	}
	if err := futuresBook.Validate(); err != nil {
		return nil, err
	}

	result := &EntryResult{
		Symbol:         spotBook.Symbol,
		ComputedAt:     time.Now().UTC(),
		SpotBestAsk:    spotBook.BestAsk(),
		SpotBestBid:    spotBook.BestBid(),
		FuturesBestAsk: futuresBook.BestAsk(),
		FuturesBestBid: futuresBook.BestBid(),
	}

	spotWalk := depth.WalkByNotional(spotBook.Asks, targetNotional)
	if spotWalk.FilledQuantity == 0 {
		// No spot ask depth: nothing to buy, no spread to quote.
		e.logger.Debug("entry-spread-no-spot-depth",
			zap.String("symbol", spotBook.Symbol),
			zap.Float64("target-notional", targetNotional))
		EntryComputationsTotal.WithLabelValues("no_depth").Inc()
		return result, nil
	}

	futuresWalk := depth.WalkByQuantity(futuresBook.Bids, spotWalk.FilledQuantity)

	// Reverse-direction prices at the same size, kept as exit reference.
	futuresAskWalk := depth.WalkByQuantity(futuresBook.Asks, spotWalk.FilledQuantity)
	spotBidWalk := depth.WalkByQuantity(spotBook.Bids, spotWalk.FilledQuantity)

	result.SpotWeightedAsk = spotWalk.WeightedPrice
	result.FuturesWeightedBid = futuresWalk.WeightedPrice
	result.SpotWeightedBid = spotBidWalk.WeightedPrice
	result.FuturesWeightedAsk = futuresAskWalk.WeightedPrice
	result.TradableCoins = spotWalk.FilledQuantity
	result.TradableUSDT = spotWalk.FilledNotional

	result.EntrySpread = (result.FuturesWeightedBid - result.SpotWeightedAsk) / result.SpotWeightedAsk * 100
	if result.FuturesWeightedAsk > 0 {
		result.ExitSpread = (result.SpotWeightedBid - result.FuturesWeightedAsk) / result.FuturesWeightedAsk * 100
	}
	result.TradeOpportunity = result.EntrySpread > e.spreadIn

	EntrySpreadPercent.Observe(result.EntrySpread)
	if result.TradeOpportunity {
		EntryComputationsTotal.WithLabelValues("opportunity").Inc()
		e.logger.Info("entry-opportunity",
			zap.String("symbol", spotBook.Symbol),
			zap.Float64("entry-spread", result.EntrySpread),
			zap.Float64("threshold", e.spreadIn),
			zap.Float64("tradable-coins", result.TradableCoins),
			zap.Float64("tradable-usdt", result.TradableUSDT))
	} else {
		EntryComputationsTotal.WithLabelValues("below_threshold").Inc()
	}

	return result, nil
}

// ComputeExit walks the spot bids and futures asks for positionCoins
// and derives the exit spread. The tradable volume is capped by the
// shallower leg.
func (e *Engine) ComputeExit(spotBook, futuresBook *types.OrderBook, positionCoins float64) (*ExitResult, error) {
	if err := spotBook.Validate(); err != nil {
		return nil, err
	}
	if err := futuresBook.Validate(); err != nil {
		return nil, err
	}

	result := &ExitResult{
		Symbol:     spotBook.Symbol,
		ComputedAt: time.Now().UTC(),
	}

	spotWalk := depth.WalkByQuantity(spotBook.Bids, positionCoins)
	futuresWalk := depth.WalkByQuantity(futuresBook.Asks, positionCoins)

	result.SpotWeightedBid = spotWalk.WeightedPrice
	result.FuturesWeightedAsk = futuresWalk.WeightedPrice
	result.SpotUSDT = spotWalk.FilledNotional
	result.FuturesUSDT = futuresWalk.FilledNotional
	result.TradableCoins = min(spotWalk.FilledQuantity, futuresWalk.FilledQuantity)

	if result.FuturesWeightedAsk == 0 {
		e.logger.Debug("exit-spread-no-futures-depth",
			zap.String("symbol", spotBook.Symbol),
			zap.Float64("position-coins", positionCoins))
		ExitComputationsTotal.WithLabelValues("no_depth").Inc()
		return result, nil
	}

	result.ExitSpread = (result.SpotWeightedBid - result.FuturesWeightedAsk) / result.FuturesWeightedAsk * 100
	result.CloseOpportunity = result.ExitSpread > e.spreadOut

	ExitSpreadPercent.Observe(result.ExitSpread)
	if result.CloseOpportunity {
		ExitComputationsTotal.WithLabelValues("opportunity").Inc()
		e.logger.Info("exit-opportunity",
			zap.String("symbol", spotBook.Symbol),
			zap.Float64("exit-spread", result.ExitSpread),
			zap.Float64("threshold", e.spreadOut),
			zap.Float64("tradable-coins", result.TradableCoins))
	} else {
		ExitComputationsTotal.WithLabelValues("below_threshold").Inc()
	}

	return result, nil
}
