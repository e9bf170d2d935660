package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/internal/ledger"
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/pkg/types"
)

// runCycle checks every configured pair once. Pair failures are
// isolated: one dead venue never stops the remaining pairs from
// trading in the same cycle.
func (s *Scheduler) runCycle(ctx context.Context) error {
	var failed int
	for _, pair := range s.pairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.checkPair(ctx, pair)
		if err != nil {
			failed++
			PairCheckErrorsTotal.WithLabelValues(pair.Symbol).Inc()
			s.logger.Error("pair-check-failed",
				zap.String("symbol", pair.Symbol),
				zap.Error(err))
		}
	}

	s.sweepOpenPositions(ctx)

	if failed > 0 {
		return fmt.Errorf("%d of %d pair checks failed", failed, len(s.pairs))
	}
	return nil
}

// sweepOpenPositions walks every non-terminal position after the pair
// checks. Positions for configured pairs were already exit-evaluated
// together with their entry check; a position whose pair has been
// removed from config can never be exit-evaluated (its venue symbols
// are gone) and is flagged every cycle until the operator resolves it.
func (s *Scheduler) sweepOpenPositions(ctx context.Context) {
	open, err := s.ledger.OpenPositions(ctx)
	if err != nil {
		s.logger.Error("open-positions-query-failed", zap.Error(err))
		return
	}
	ActivePositions.Set(float64(len(open)))

	for _, pos := range open {
		if _, ok := s.pairFor(pos.Symbol); !ok {
			s.logger.Warn("open-position-without-configured-pair",
				zap.String("position-id", pos.ID),
				zap.String("symbol", pos.Symbol),
				zap.Float64("remaining-coins", pos.RemainingSpotCoins))
		}
	}
}

func (s *Scheduler) fetchBook(ctx context.Context, exchangeID string, market gateway.MarketType, symbol string) (*types.OrderBook, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.FetchOrderBook(callCtx, exchangeID, market, symbol, s.bookDepthLimit)
}

func (s *Scheduler) checkPair(ctx context.Context, pair Pair) error {
	spotBook, err := s.fetchBook(ctx, pair.SpotExchange, gateway.Spot, pair.SpotSymbol)
	if err != nil {
		return err
	}
	futuresBook, err := s.fetchBook(ctx, pair.FuturesExchange, gateway.Futures, pair.FuturesSymbol)
	if err != nil {
		return err
	}

	entry, err := s.engine.ComputeEntry(spotBook, futuresBook, s.lotMin)
	if err != nil {
		return err
	}

	pos, err := s.ledger.FindActivePosition(ctx, pair.Symbol)
	if err != nil {
		return err
	}

	var exit *spread.ExitResult
	if pos != nil {
		exit, err = s.engine.ComputeExit(spotBook, futuresBook, pos.RemainingSpotCoins)
		if err != nil {
			return err
		}
	}

	s.recordSpread(ctx, pair, entry, exit)

	if entry.TradeOpportunity {
		s.handleEntry(ctx, pair, entry, pos, spotBook, futuresBook)
	}

	if pos != nil && exit != nil {
		err = s.handleExit(ctx, pair, pos, exit)
		if err != nil {
			return err
		}
	}

	return nil
}

// recordSpread persists the observation. Failures are logged and
// swallowed; history must never stall the trading path.
func (s *Scheduler) recordSpread(ctx context.Context, pair Pair, entry *spread.EntryResult, exit *spread.ExitResult) {
	rec := &types.SpreadRecord{
		Symbol:             pair.Symbol,
		SpotExchange:       pair.SpotExchange,
		FuturesExchange:    pair.FuturesExchange,
		EntrySpread:        entry.EntrySpread,
		ExitSpread:         entry.ExitSpread,
		SpotBestAsk:        entry.SpotBestAsk,
		SpotBestBid:        entry.SpotBestBid,
		FuturesBestAsk:     entry.FuturesBestAsk,
		FuturesBestBid:     entry.FuturesBestBid,
		SpotWeightedAsk:    entry.SpotWeightedAsk,
		FuturesWeightedBid: entry.FuturesWeightedBid,
		SpotWeightedBid:    entry.SpotWeightedBid,
		FuturesWeightedAsk: entry.FuturesWeightedAsk,
		TradableCoins:      entry.TradableCoins,
		TradableUSDT:       entry.TradableUSDT,
		TradeOpportunity:   entry.TradeOpportunity,
		CreatedAt:          time.Now().UTC(),
	}
	if exit != nil {
		rec.ExitSpread = exit.ExitSpread
		rec.CloseOpportunity = exit.CloseOpportunity
	}

	err := s.spreads.StoreSpread(ctx, rec)
	if err != nil {
		s.logger.Warn("spread-record-failed",
			zap.String("symbol", pair.Symbol),
			zap.Error(err))
	}
}

// handleEntry notifies about the opportunity and, with auto-trade on,
// opens a new position or increases the existing one within lot_max
// headroom. Trade failures are logged and notified, never escalated to
// a cycle failure.
func (s *Scheduler) handleEntry(ctx context.Context, pair Pair, entry *spread.EntryResult, pos *types.Position, spotBook, futuresBook *types.OrderBook) {
	OpportunitiesTotal.WithLabelValues(pair.Symbol, "entry").Inc()
	s.notifier.Send(ctx, fmt.Sprintf(
		"📈 Entry opportunity %s: spread %.4f%% (spot %s ask %.6f / futures %s bid %.6f, %.2f USDT tradable)",
		pair.Symbol, entry.EntrySpread,
		pair.SpotExchange, entry.SpotWeightedAsk,
		pair.FuturesExchange, entry.FuturesWeightedBid,
		entry.TradableUSDT))

	if !s.autoTrade {
		return
	}

	if pos == nil {
		err := s.openPosition(ctx, pair, entry)
		if err != nil {
			s.logger.Error("position-open-failed",
				zap.String("symbol", pair.Symbol),
				zap.Error(err))
			s.notifier.Send(ctx, fmt.Sprintf("⚠️ Entry failed for %s: %v", pair.Symbol, err))
		}
		return
	}

	headroom := s.lotMax - pos.SpotUSDT
	if headroom < s.lotMin {
		s.logger.Debug("increase-skipped-no-headroom",
			zap.String("symbol", pair.Symbol),
			zap.Float64("headroom", headroom))
		return
	}

	// Re-walk the books at the headroom notional; the deeper walk can
	// degrade the weighted prices below the threshold.
	incEntry, err := s.engine.ComputeEntry(spotBook, futuresBook, headroom)
	if err != nil {
		s.logger.Error("increase-entry-recompute-failed",
			zap.String("symbol", pair.Symbol),
			zap.Error(err))
		return
	}
	if !incEntry.TradeOpportunity {
		s.logger.Debug("increase-skipped-below-threshold",
			zap.String("symbol", pair.Symbol),
			zap.Float64("entry-spread", incEntry.EntrySpread))
		return
	}

	err = s.increasePosition(ctx, pair, pos, incEntry)
	if err != nil {
		s.logger.Error("position-increase-failed",
			zap.String("symbol", pair.Symbol),
			zap.Error(err))
		s.notifier.Send(ctx, fmt.Sprintf("⚠️ Increase failed for %s: %v", pair.Symbol, err))
	}
}

// handleExit closes part or all of the position when the exit spread
// and dust rules say so.
func (s *Scheduler) handleExit(ctx context.Context, pair Pair, pos *types.Position, exit *spread.ExitResult) error {
	if exit.CloseOpportunity {
		OpportunitiesTotal.WithLabelValues(pair.Symbol, "exit").Inc()
		s.notifier.Send(ctx, fmt.Sprintf(
			"📉 Exit opportunity %s: spread %.4f%% (%.6f coins closable)",
			pair.Symbol, exit.ExitSpread, exit.TradableCoins))
	}

	minAmount, err := s.minTradeAmount(ctx, pair)
	if err != nil {
		return err
	}

	shouldClose, coins := ledger.ShouldClose(pos, exit, minAmount)
	if !shouldClose {
		return nil
	}

	if !s.autoTrade {
		return nil
	}

	err = s.closePosition(ctx, pair, pos, exit, coins)
	if err != nil {
		s.logger.Error("position-close-failed",
			zap.String("symbol", pair.Symbol),
			zap.String("position-id", pos.ID),
			zap.Error(err))
		s.notifier.Send(ctx, fmt.Sprintf("⚠️ Exit failed for %s: %v", pair.Symbol, err))
	}
	return nil
}

func (s *Scheduler) minTradeAmount(ctx context.Context, pair Pair) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.MinTradeAmount(callCtx, pair.SpotExchange, pair.SpotSymbol)
}
