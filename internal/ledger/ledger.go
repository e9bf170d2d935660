// Package ledger owns the position lifecycle state machine: open,
// increase, partial and full exits, with an append-only adjustment
// trail and realized PnL accounting.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/basis-arb/pkg/types"
	"go.uber.org/zap"
)

// Epsilon is the tolerance for coin-quantity comparisons. Remaining
// volume at or below it counts as fully closed.
const Epsilon = 1e-9

// Store is the persistence the ledger requires. Implementations live in
// internal/storage.
type Store interface {
	CreatePosition(ctx context.Context, pos *types.Position) error
	UpdatePosition(ctx context.Context, pos *types.Position) error
	AppendAdjustment(ctx context.Context, adj *types.PositionAdjustment) error
	GetPosition(ctx context.Context, id string) (*types.Position, error)
	FindActivePosition(ctx context.Context, symbol string) (*types.Position, error)
	OpenPositions(ctx context.Context) ([]*types.Position, error)
	ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error)
}

// Ledger serializes all mutation of a given position. The scheduler is
// the default mutator, but manual administrative exits go through the
// same methods, so concurrent exits cannot double-decrement remaining
// volume or double-count PnL.
type Ledger struct {
	store         Store
	lotMax        float64
	logger        *zap.Logger
	retryAttempts int
	retryDelay    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Config holds ledger configuration.
type Config struct {
	Store  Store
	LotMax float64 // max position notional, USDT
	Logger *zap.Logger

	// Retry policy for funds-affecting writes. Zero values use defaults.
	RetryAttempts int
	RetryDelay    time.Duration
}

// New creates a new position ledger.
func New(cfg Config) *Ledger {
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Ledger{
		store:         cfg.Store,
		lotMax:        cfg.LotMax,
		logger:        cfg.Logger,
		retryAttempts: attempts,
		retryDelay:    delay,
		locks:         make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding the given key, creating it on
// first use. Keys are position IDs, plus a symbol key during Open.
func (l *Ledger) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// dropLock removes the mutex entry for a position that reached Closed,
// so the map does not grow with the lifetime position count. A racing
// caller that re-creates the entry just reads the terminal status and
// gets an InvalidStateError. Symbol keys stay; the pair set is static.
func (l *Ledger) dropLock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
}

// OpenParams describes the first successful entry of a position.
type OpenParams struct {
	Symbol          string
	SpotExchange    string
	FuturesExchange string
	SpotCoins       float64
	FuturesCoins    float64
	SpotPrice       float64
	FuturesPrice    float64
	EntrySpread     float64
	SpotOrderID     string
	FuturesOrderID  string
}

// Open creates a new position. It fails with an InvalidStateError when
// a non-terminal position already exists for the symbol.
func (l *Ledger) Open(ctx context.Context, p OpenParams) (*types.Position, error) {
	lock := l.lockFor("symbol:" + p.Symbol)
	lock.Lock()
	defer lock.Unlock()

	existing, err := l.store.FindActivePosition(ctx, p.Symbol)
	if err != nil {
		return nil, &types.PersistenceError{Op: "find active position", Err: err}
	}
	if existing != nil {
		return nil, &types.InvalidStateError{
			Op:         "open",
			PositionID: existing.ID,
			Reason:     "non-terminal position already exists for " + p.Symbol,
		}
	}

	now := time.Now().UTC()
	pos := &types.Position{
		ID:                    uuid.New().String(),
		Symbol:                p.Symbol,
		SpotExchange:          p.SpotExchange,
		FuturesExchange:       p.FuturesExchange,
		Status:                types.StatusOpen,
		InitialEntrySpread:    p.EntrySpread,
		SpotCoins:             p.SpotCoins,
		FuturesCoins:          p.FuturesCoins,
		SpotUSDT:              p.SpotCoins * p.SpotPrice,
		FuturesUSDT:           p.FuturesCoins * p.FuturesPrice,
		SpotAvgPrice:          p.SpotPrice,
		FuturesAvgPrice:       p.FuturesPrice,
		RemainingSpotCoins:    p.SpotCoins,
		RemainingFuturesCoins: p.FuturesCoins,
		SpotOrderIDs:          []string{p.SpotOrderID},
		FuturesOrderIDs:       []string{p.FuturesOrderID},
		CreatedAt:             now,
	}

	err = l.persist(ctx, "create position", func() error {
		return l.store.CreatePosition(ctx, pos)
	})
	if err != nil {
		return nil, err
	}

	adj := &types.PositionAdjustment{
		ID:             uuid.New().String(),
		PositionID:     pos.ID,
		Type:           types.AdjustmentEntry,
		Spread:         p.EntrySpread,
		SpotCoins:      p.SpotCoins,
		FuturesCoins:   p.FuturesCoins,
		SpotPrice:      p.SpotPrice,
		FuturesPrice:   p.FuturesPrice,
		SpotOrderID:    p.SpotOrderID,
		FuturesOrderID: p.FuturesOrderID,
		CreatedAt:      now,
	}
	err = l.persist(ctx, "append entry adjustment", func() error {
		return l.store.AppendAdjustment(ctx, adj)
	})
	if err != nil {
		return nil, err
	}

	PositionsOpenedTotal.Inc()
	l.logger.Info("position-opened",
		zap.String("position-id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.Float64("spot-coins", pos.SpotCoins),
		zap.Float64("spot-usdt", pos.SpotUSDT),
		zap.Float64("entry-spread", p.EntrySpread))

	return pos, nil
}

// IncreaseParams describes an entry increase against a live position.
type IncreaseParams struct {
	AddSpotCoins    float64
	AddFuturesCoins float64
	SpotPrice       float64
	FuturesPrice    float64
	EntrySpread     float64
	SpotOrderID     string
	FuturesOrderID  string
}

// Increase adds volume to both legs without changing status. It is a
// warn-logged no-op when the position is terminal or the added notional
// would push past lot_max; callers are expected to check headroom first.
func (l *Ledger) Increase(ctx context.Context, positionID string, p IncreaseParams) error {
	lock := l.lockFor(positionID)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.store.GetPosition(ctx, positionID)
	if err != nil {
		return &types.PersistenceError{Op: "get position", Err: err}
	}
	if pos == nil {
		return &types.InvalidStateError{Op: "increase", PositionID: positionID, Reason: "position not found"}
	}
	if !pos.Status.Active() {
		l.logger.Warn("increase-skipped-terminal-position",
			zap.String("position-id", positionID),
			zap.String("status", string(pos.Status)))
		return nil
	}

	addNotional := p.AddSpotCoins * p.SpotPrice
	if pos.SpotUSDT+addNotional > l.lotMax+Epsilon {
		l.logger.Warn("increase-skipped-over-lot-max",
			zap.String("position-id", positionID),
			zap.Float64("current-usdt", pos.SpotUSDT),
			zap.Float64("added-usdt", addNotional),
			zap.Float64("lot-max", l.lotMax))
		return nil
	}

	pos.SpotCoins += p.AddSpotCoins
	pos.FuturesCoins += p.AddFuturesCoins
	pos.SpotUSDT += addNotional
	pos.FuturesUSDT += p.AddFuturesCoins * p.FuturesPrice
	pos.RemainingSpotCoins += p.AddSpotCoins
	pos.RemainingFuturesCoins += p.AddFuturesCoins
	pos.SpotAvgPrice = pos.SpotUSDT / pos.SpotCoins
	pos.FuturesAvgPrice = pos.FuturesUSDT / pos.FuturesCoins
	pos.SpotOrderIDs = append(pos.SpotOrderIDs, p.SpotOrderID)
	pos.FuturesOrderIDs = append(pos.FuturesOrderIDs, p.FuturesOrderID)

	err = l.persist(ctx, "update position", func() error {
		return l.store.UpdatePosition(ctx, pos)
	})
	if err != nil {
		return err
	}

	adj := &types.PositionAdjustment{
		ID:             uuid.New().String(),
		PositionID:     pos.ID,
		Type:           types.AdjustmentIncrease,
		Spread:         p.EntrySpread,
		SpotCoins:      p.AddSpotCoins,
		FuturesCoins:   p.AddFuturesCoins,
		SpotPrice:      p.SpotPrice,
		FuturesPrice:   p.FuturesPrice,
		SpotOrderID:    p.SpotOrderID,
		FuturesOrderID: p.FuturesOrderID,
		CreatedAt:      time.Now().UTC(),
	}
	err = l.persist(ctx, "append increase adjustment", func() error {
		return l.store.AppendAdjustment(ctx, adj)
	})
	if err != nil {
		return err
	}

	PositionIncreasesTotal.Inc()
	l.logger.Info("position-increased",
		zap.String("position-id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.Float64("added-coins", p.AddSpotCoins),
		zap.Float64("total-usdt", pos.SpotUSDT))

	return nil
}

// ExitParams describes a partial or full close.
type ExitParams struct {
	CoinsToClose   float64
	SpotPrice      float64
	FuturesPrice   float64
	ExitSpread     float64
	SpotOrderID    string
	FuturesOrderID string
}

// ApplyExit closes coinsToClose on both legs: realizes PnL against the
// proportional cost basis, decrements remaining volume, transitions to
// PartiallyClosed or Closed, and appends the adjustment record. It
// fails with an InvalidStateError on a closed position or when asked to
// close more than remains. Returns the realized PnL delta in USDT.
func (l *Ledger) ApplyExit(ctx context.Context, positionID string, p ExitParams) (float64, error) {
	lock := l.lockFor(positionID)
	lock.Lock()
	defer lock.Unlock()

	pos, err := l.store.GetPosition(ctx, positionID)
	if err != nil {
		return 0, &types.PersistenceError{Op: "get position", Err: err}
	}
	if pos == nil {
		return 0, &types.InvalidStateError{Op: "apply exit", PositionID: positionID, Reason: "position not found"}
	}
	if pos.Status == types.StatusClosed {
		return 0, &types.InvalidStateError{Op: "apply exit", PositionID: positionID, Reason: "position already closed"}
	}
	if p.CoinsToClose <= 0 {
		return 0, &types.InvalidStateError{Op: "apply exit", PositionID: positionID, Reason: "coins to close must be positive"}
	}
	if p.CoinsToClose > pos.RemainingSpotCoins+Epsilon {
		return 0, &types.InvalidStateError{
			Op:         "apply exit",
			PositionID: positionID,
			Reason:     "coins to close exceeds remaining volume",
		}
	}

	// PnL against the proportional entry basis of each leg.
	spotBasis := pos.SpotUSDT / pos.SpotCoins * p.CoinsToClose
	futuresBasis := pos.FuturesUSDT / pos.FuturesCoins * p.CoinsToClose
	spotProceeds := p.CoinsToClose * p.SpotPrice
	futuresCost := p.CoinsToClose * p.FuturesPrice
	pnl := (spotProceeds - spotBasis) + (futuresBasis - futuresCost)

	pos.RemainingSpotCoins -= p.CoinsToClose
	pos.RemainingFuturesCoins -= p.CoinsToClose
	pos.PnLUSDT += pnl
	pos.SpotOrderIDs = append(pos.SpotOrderIDs, p.SpotOrderID)
	pos.FuturesOrderIDs = append(pos.FuturesOrderIDs, p.FuturesOrderID)

	if pos.RemainingSpotCoins <= Epsilon {
		pos.RemainingSpotCoins = 0
		if pos.RemainingFuturesCoins <= Epsilon {
			pos.RemainingFuturesCoins = 0
		}
		pos.Status = types.StatusClosed
		now := time.Now().UTC()
		pos.ClosedAt = &now
	} else {
		pos.Status = types.StatusPartiallyClosed
	}

	err = l.persist(ctx, "update position", func() error {
		return l.store.UpdatePosition(ctx, pos)
	})
	if err != nil {
		return 0, err
	}

	adj := &types.PositionAdjustment{
		ID:             uuid.New().String(),
		PositionID:     pos.ID,
		Type:           types.AdjustmentPartialClose,
		Spread:         p.ExitSpread,
		SpotCoins:      p.CoinsToClose,
		FuturesCoins:   p.CoinsToClose,
		SpotPrice:      p.SpotPrice,
		FuturesPrice:   p.FuturesPrice,
		PnLUSDT:        pnl,
		SpotOrderID:    p.SpotOrderID,
		FuturesOrderID: p.FuturesOrderID,
		CreatedAt:      time.Now().UTC(),
	}
	err = l.persist(ctx, "append exit adjustment", func() error {
		return l.store.AppendAdjustment(ctx, adj)
	})
	if err != nil {
		return 0, err
	}

	PositionExitsTotal.Inc()
	ExitPnLUSDT.Observe(pnl)
	if pos.Status == types.StatusClosed {
		PositionsClosedTotal.Inc()
		l.dropLock(positionID)
	}
	l.logger.Info("position-exit-applied",
		zap.String("position-id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.Float64("coins-closed", p.CoinsToClose),
		zap.Float64("pnl-delta-usdt", pnl),
		zap.Float64("cumulative-pnl-usdt", pos.PnLUSDT),
		zap.String("status", string(pos.Status)))

	return pnl, nil
}

// GetPosition is a snapshot read of a single position.
func (l *Ledger) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	return l.store.GetPosition(ctx, id)
}

// OpenPositions is a snapshot read of all non-terminal positions.
func (l *Ledger) OpenPositions(ctx context.Context) ([]*types.Position, error) {
	return l.store.OpenPositions(ctx)
}

// ClosedPositions is a snapshot read of positions closed within the
// last sinceDays days.
func (l *Ledger) ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error) {
	return l.store.ClosedPositions(ctx, sinceDays)
}

// FindActivePosition returns the non-terminal position for symbol, or
// nil when none exists.
func (l *Ledger) FindActivePosition(ctx context.Context, symbol string) (*types.Position, error) {
	return l.store.FindActivePosition(ctx, symbol)
}

// persist runs a funds-affecting write with exponential-backoff
// retries. Exhausting the retries returns a PersistenceError and bumps
// the failure counter; it is never swallowed.
func (l *Ledger) persist(ctx context.Context, op string, fn func() error) error {
	var err error
	delay := l.retryDelay
	for attempt := 1; attempt <= l.retryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		l.logger.Warn("persistence-retry",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		PersistenceRetriesTotal.Inc()
		if attempt == l.retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return &types.PersistenceError{Op: op, Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}

	PersistenceFailuresTotal.Inc()
	l.logger.Error("persistence-failed",
		zap.String("op", op),
		zap.Int("attempts", l.retryAttempts),
		zap.Error(err))
	return &types.PersistenceError{Op: op, Err: err}
}
