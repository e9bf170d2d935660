package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/basis-arb/pkg/types"
)

// ConsoleStorage implements Storage with in-memory state, pretty-printing
// actionable spreads to console. Positions do not survive a restart, so
// it is only suitable for observation runs.
type ConsoleStorage struct {
	logger *zap.Logger

	mu          sync.Mutex
	positions   map[string]*types.Position
	adjustments map[string][]*types.PositionAdjustment
	spreads     []*types.SpreadRecord
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger:      logger,
		positions:   make(map[string]*types.Position),
		adjustments: make(map[string][]*types.PositionAdjustment),
	}
}

func copyPosition(pos *types.Position) *types.Position {
	cp := *pos
	cp.SpotOrderIDs = append([]string(nil), pos.SpotOrderIDs...)
	cp.FuturesOrderIDs = append([]string(nil), pos.FuturesOrderIDs...)
	if pos.ClosedAt != nil {
		t := *pos.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

// CreatePosition stores a newly opened position.
func (c *ConsoleStorage) CreatePosition(ctx context.Context, pos *types.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[pos.ID] = copyPosition(pos)
	return nil
}

// UpdatePosition replaces the stored state of a position.
func (c *ConsoleStorage) UpdatePosition(ctx context.Context, pos *types.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.positions[pos.ID]; !ok {
		return fmt.Errorf("update position: %s not found", pos.ID)
	}
	c.positions[pos.ID] = copyPosition(pos)
	return nil
}

// AppendAdjustment records an entry, increase, or exit event.
func (c *ConsoleStorage) AppendAdjustment(ctx context.Context, adj *types.PositionAdjustment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *adj
	c.adjustments[adj.PositionID] = append(c.adjustments[adj.PositionID], &cp)
	return nil
}

// GetPosition returns a position by id, or nil when absent.
func (c *ConsoleStorage) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.positions[id]
	if !ok {
		return nil, nil
	}
	return copyPosition(pos), nil
}

// FindActivePosition returns the non-terminal position for a symbol.
func (c *ConsoleStorage) FindActivePosition(ctx context.Context, symbol string) (*types.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pos := range c.positions {
		if pos.Symbol == symbol && pos.Status.Active() {
			return copyPosition(pos), nil
		}
	}
	return nil, nil
}

// OpenPositions returns all non-terminal positions.
func (c *ConsoleStorage) OpenPositions(ctx context.Context) ([]*types.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*types.Position
	for _, pos := range c.positions {
		if pos.Status.Active() {
			out = append(out, copyPosition(pos))
		}
	}
	return out, nil
}

// ClosedPositions returns positions closed within the last sinceDays days.
func (c *ConsoleStorage) ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	since := time.Now().UTC().AddDate(0, 0, -sinceDays)
	var out []*types.Position
	for _, pos := range c.positions {
		if pos.Status == types.StatusClosed && pos.ClosedAt != nil && pos.ClosedAt.After(since) {
			out = append(out, copyPosition(pos))
		}
	}
	return out, nil
}

// StoreSpread keeps the observation in memory and pretty-prints
// actionable ones to console.
func (c *ConsoleStorage) StoreSpread(ctx context.Context, rec *types.SpreadRecord) error {
	c.mu.Lock()
	cp := *rec
	c.spreads = append(c.spreads, &cp)
	c.mu.Unlock()

	if !rec.TradeOpportunity && !rec.CloseOpportunity {
		return nil
	}

	kind := "ENTRY"
	spread := rec.EntrySpread
	if rec.CloseOpportunity {
		kind = "EXIT"
		spread = rec.ExitSpread
	}

	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("🎯 %s OPPORTUNITY: %s\n", kind, rec.Symbol)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Spot:     %s (ask %.6f / bid %.6f)\n", rec.SpotExchange, rec.SpotBestAsk, rec.SpotBestBid)
	fmt.Printf("Futures:  %s (ask %.6f / bid %.6f)\n", rec.FuturesExchange, rec.FuturesBestAsk, rec.FuturesBestBid)
	fmt.Printf("Spread:   %.4f%%\n", spread)
	fmt.Printf("Tradable: %.6f coins ($%.2f)\n", rec.TradableCoins, rec.TradableUSDT)
	fmt.Printf("Time:     %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// RecentSpreads returns in-memory observations for a symbol, newest first.
func (c *ConsoleStorage) RecentSpreads(ctx context.Context, symbol string, hours int) ([]*types.SpreadRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	var out []*types.SpreadRecord
	for i := len(c.spreads) - 1; i >= 0; i-- {
		rec := c.spreads[i]
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		if rec.CreatedAt.Before(since) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
