package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/internal/gateway"
	"github.com/mselser95/basis-arb/internal/ledger"
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/pkg/types"
)

// openPosition executes both entry legs and records the new position.
// The spot leg goes first; a spot failure aborts with no exposure. A
// futures failure after a filled spot leg leaves one-legged exposure,
// which is alerted loudly and left for the operator to resolve.
func (s *Scheduler) openPosition(ctx context.Context, pair Pair, entry *spread.EntryResult) error {
	coins := entry.TradableCoins
	if coins <= 0 {
		return nil
	}

	spotAck, err := s.executeSpotBuy(ctx, pair, coins, entry.SpotWeightedAsk)
	if err != nil {
		TradesTotal.WithLabelValues("entry", "failed").Inc()
		return err
	}

	futuresAck, err := s.executeFuturesSell(ctx, pair, coins, entry.FuturesWeightedBid)
	if err != nil {
		TradesTotal.WithLabelValues("entry", "one_legged").Inc()
		s.logger.Error("one-legged-entry",
			zap.String("symbol", pair.Symbol),
			zap.String("spot-order-id", spotAck.ID),
			zap.Float64("coins", coins),
			zap.Error(err))
		s.notifier.Send(ctx, fmt.Sprintf(
			"🚨 ONE-LEGGED ENTRY on %s: spot filled (%s, %.6f coins) but futures leg failed: %v",
			pair.Symbol, spotAck.ID, coins, err))
		return err
	}

	pos, err := s.ledger.Open(ctx, ledger.OpenParams{
		Symbol:          pair.Symbol,
		SpotExchange:    pair.SpotExchange,
		FuturesExchange: pair.FuturesExchange,
		SpotCoins:       coins,
		FuturesCoins:    coins,
		SpotPrice:       entry.SpotWeightedAsk,
		FuturesPrice:    entry.FuturesWeightedBid,
		EntrySpread:     entry.EntrySpread,
		SpotOrderID:     spotAck.ID,
		FuturesOrderID:  futuresAck.ID,
	})
	if err != nil {
		return err
	}

	TradesTotal.WithLabelValues("entry", "ok").Inc()
	s.notifier.Send(ctx, fmt.Sprintf(
		"✅ Opened %s: %.6f coins at %.4f%% spread (%.2f USDT)",
		pair.Symbol, coins, entry.EntrySpread, pos.SpotUSDT))
	return nil
}

// increasePosition executes both legs and adds volume to the live
// position. The caller has already verified lot_max headroom.
func (s *Scheduler) increasePosition(ctx context.Context, pair Pair, pos *types.Position, entry *spread.EntryResult) error {
	coins := entry.TradableCoins
	headroom := s.lotMax - pos.SpotUSDT
	if coins*entry.SpotWeightedAsk > headroom {
		coins = headroom / entry.SpotWeightedAsk
	}
	if coins <= 0 {
		return nil
	}

	spotAck, err := s.executeSpotBuy(ctx, pair, coins, entry.SpotWeightedAsk)
	if err != nil {
		TradesTotal.WithLabelValues("increase", "failed").Inc()
		return err
	}

	futuresAck, err := s.executeFuturesSell(ctx, pair, coins, entry.FuturesWeightedBid)
	if err != nil {
		TradesTotal.WithLabelValues("increase", "one_legged").Inc()
		s.notifier.Send(ctx, fmt.Sprintf(
			"🚨 ONE-LEGGED INCREASE on %s: spot filled (%s, %.6f coins) but futures leg failed: %v",
			pair.Symbol, spotAck.ID, coins, err))
		return err
	}

	err = s.ledger.Increase(ctx, pos.ID, ledger.IncreaseParams{
		AddSpotCoins:    coins,
		AddFuturesCoins: coins,
		SpotPrice:       entry.SpotWeightedAsk,
		FuturesPrice:    entry.FuturesWeightedBid,
		EntrySpread:     entry.EntrySpread,
		SpotOrderID:     spotAck.ID,
		FuturesOrderID:  futuresAck.ID,
	})
	if err != nil {
		return err
	}

	TradesTotal.WithLabelValues("increase", "ok").Inc()
	s.notifier.Send(ctx, fmt.Sprintf(
		"✅ Increased %s by %.6f coins at %.4f%% spread",
		pair.Symbol, coins, entry.EntrySpread))
	return nil
}

// closePosition executes both exit legs and applies the exit to the
// ledger. The spot sell goes first, mirroring the entry ordering.
func (s *Scheduler) closePosition(ctx context.Context, pair Pair, pos *types.Position, exit *spread.ExitResult, coins float64) error {
	spotAck, err := s.executeSpotSell(ctx, pair, coins, exit.SpotWeightedBid)
	if err != nil {
		TradesTotal.WithLabelValues("exit", "failed").Inc()
		return err
	}

	futuresAck, err := s.executeFuturesBuy(ctx, pair, coins, exit.FuturesWeightedAsk)
	if err != nil {
		TradesTotal.WithLabelValues("exit", "one_legged").Inc()
		s.notifier.Send(ctx, fmt.Sprintf(
			"🚨 ONE-LEGGED EXIT on %s: spot sold (%s, %.6f coins) but futures leg failed: %v",
			pair.Symbol, spotAck.ID, coins, err))
		return err
	}

	pnl, err := s.ledger.ApplyExit(ctx, pos.ID, ledger.ExitParams{
		CoinsToClose:   coins,
		SpotPrice:      exit.SpotWeightedBid,
		FuturesPrice:   exit.FuturesWeightedAsk,
		ExitSpread:     exit.ExitSpread,
		SpotOrderID:    spotAck.ID,
		FuturesOrderID: futuresAck.ID,
	})
	if err != nil {
		return err
	}

	TradesTotal.WithLabelValues("exit", "ok").Inc()
	s.notifier.Send(ctx, fmt.Sprintf(
		"✅ Closed %.6f coins of %s at %.4f%% spread, PnL %+.2f USDT",
		coins, pair.Symbol, exit.ExitSpread, pnl))
	return nil
}

// ManualClose closes coins of the position regardless of the current
// exit spread, at the prices the books currently bear. A non-positive
// coins closes the full remaining volume. Returns the realized PnL.
func (s *Scheduler) ManualClose(ctx context.Context, positionID string, coins float64) (float64, error) {
	pos, err := s.ledger.GetPosition(ctx, positionID)
	if err != nil {
		return 0, err
	}
	if pos == nil {
		return 0, &types.InvalidStateError{Op: "manual close", PositionID: positionID, Reason: "position not found"}
	}
	if !pos.Status.Active() {
		return 0, &types.InvalidStateError{Op: "manual close", PositionID: positionID, Reason: "position is closed"}
	}

	pair, ok := s.pairFor(pos.Symbol)
	if !ok {
		return 0, &types.InvalidStateError{Op: "manual close", PositionID: positionID,
			Reason: "no pair configured for " + pos.Symbol}
	}

	if coins <= 0 || coins > pos.RemainingSpotCoins {
		coins = pos.RemainingSpotCoins
	}

	spotBook, err := s.fetchBook(ctx, pair.SpotExchange, gateway.Spot, pair.SpotSymbol)
	if err != nil {
		return 0, err
	}
	futuresBook, err := s.fetchBook(ctx, pair.FuturesExchange, gateway.Futures, pair.FuturesSymbol)
	if err != nil {
		return 0, err
	}

	exit, err := s.engine.ComputeExit(spotBook, futuresBook, coins)
	if err != nil {
		return 0, err
	}
	if exit.SpotWeightedBid <= 0 || exit.FuturesWeightedAsk <= 0 {
		return 0, &types.MarketDataError{Exchange: pair.SpotExchange, Symbol: pos.Symbol,
			Err: fmt.Errorf("insufficient depth to close %.6f coins", coins)}
	}

	err = s.closePosition(ctx, pair, pos, exit, coins)
	if err != nil {
		return 0, err
	}

	updated, err := s.ledger.GetPosition(ctx, positionID)
	if err != nil || updated == nil {
		return 0, err
	}
	return updated.PnLUSDT - pos.PnLUSDT, nil
}

// ManualOpen enters notionalUSDT of the symbol at current weighted
// prices regardless of the entry spread threshold. If an active
// position exists the volume is added to it, subject to lot_max
// headroom. Returns the ID of the position holding the volume.
func (s *Scheduler) ManualOpen(ctx context.Context, symbol string, notionalUSDT float64) (string, error) {
	if notionalUSDT <= 0 {
		return "", &types.ValidationError{Symbol: symbol, Reason: "notional must be positive"}
	}

	pair, ok := s.pairFor(symbol)
	if !ok {
		return "", &types.ValidationError{Symbol: symbol, Reason: "no pair configured"}
	}

	spotBook, err := s.fetchBook(ctx, pair.SpotExchange, gateway.Spot, pair.SpotSymbol)
	if err != nil {
		return "", err
	}
	futuresBook, err := s.fetchBook(ctx, pair.FuturesExchange, gateway.Futures, pair.FuturesSymbol)
	if err != nil {
		return "", err
	}

	entry, err := s.engine.ComputeEntry(spotBook, futuresBook, notionalUSDT)
	if err != nil {
		return "", err
	}
	if entry.SpotWeightedAsk <= 0 || entry.FuturesWeightedBid <= 0 || entry.TradableCoins <= 0 {
		return "", &types.MarketDataError{Exchange: pair.SpotExchange, Symbol: symbol,
			Err: fmt.Errorf("insufficient depth to enter %.2f USDT", notionalUSDT)}
	}

	pos, err := s.ledger.FindActivePosition(ctx, symbol)
	if err != nil {
		return "", err
	}

	if pos == nil {
		err = s.openPosition(ctx, pair, entry)
		if err != nil {
			return "", err
		}
		opened, err := s.ledger.FindActivePosition(ctx, symbol)
		if err != nil || opened == nil {
			return "", err
		}
		return opened.ID, nil
	}

	if s.lotMax-pos.SpotUSDT <= 0 {
		return "", &types.InvalidStateError{Op: "manual open", PositionID: pos.ID,
			Reason: "position already at max notional"}
	}
	err = s.increasePosition(ctx, pair, pos, entry)
	if err != nil {
		return "", err
	}
	return pos.ID, nil
}

func (s *Scheduler) pairFor(symbol string) (Pair, bool) {
	for _, pair := range s.pairs {
		if pair.Symbol == symbol {
			return pair, true
		}
	}
	return Pair{}, false
}

func (s *Scheduler) executeSpotBuy(ctx context.Context, pair Pair, coins, price float64) (*types.OrderAck, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.ExecuteSpotBuy(callCtx, pair.SpotExchange, pair.SpotSymbol, coins, price)
}

func (s *Scheduler) executeSpotSell(ctx context.Context, pair Pair, coins, price float64) (*types.OrderAck, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.ExecuteSpotSell(callCtx, pair.SpotExchange, pair.SpotSymbol, coins, price)
}

func (s *Scheduler) executeFuturesBuy(ctx context.Context, pair Pair, coins, price float64) (*types.OrderAck, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.ExecuteFuturesBuy(callCtx, pair.FuturesExchange, pair.FuturesSymbol, coins, price)
}

func (s *Scheduler) executeFuturesSell(ctx context.Context, pair Pair, coins, price float64) (*types.OrderAck, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.gateway.ExecuteFuturesSell(callCtx, pair.FuturesExchange, pair.FuturesSymbol, coins, price)
}
