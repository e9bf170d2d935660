package storage

import (
	"context"

	"github.com/mselser95/basis-arb/pkg/types"
)

// Storage is the interface for persisting positions, their adjustment
// trail, and spread observations.
type Storage interface {
	// CreatePosition stores a newly opened position.
	CreatePosition(ctx context.Context, pos *types.Position) error

	// UpdatePosition replaces the stored state of a position.
	UpdatePosition(ctx context.Context, pos *types.Position) error

	// AppendAdjustment records an entry, increase, or exit event.
	AppendAdjustment(ctx context.Context, adj *types.PositionAdjustment) error

	// GetPosition returns a position by id, or nil when absent.
	GetPosition(ctx context.Context, id string) (*types.Position, error)

	// FindActivePosition returns the open or partially closed
	// position for a symbol, or nil when none exists.
	FindActivePosition(ctx context.Context, symbol string) (*types.Position, error)

	// OpenPositions returns all non-terminal positions.
	OpenPositions(ctx context.Context) ([]*types.Position, error)

	// ClosedPositions returns positions closed within the last
	// sinceDays days.
	ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error)

	// StoreSpread records a spread observation.
	StoreSpread(ctx context.Context, rec *types.SpreadRecord) error

	// RecentSpreads returns observations for a symbol within the last
	// hours hours, newest first. An empty symbol matches all pairs.
	RecentSpreads(ctx context.Context, symbol string, hours int) ([]*types.SpreadRecord, error)

	// Close closes the storage connection.
	Close() error
}
