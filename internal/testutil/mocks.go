// Package testutil provides in-memory collaborators for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/basis-arb/pkg/types"
)

// MemoryStore is an in-memory position store implementing ledger.Store
// plus spread-record persistence. Write failures can be injected per
// operation to exercise retry paths.
type MemoryStore struct {
	mu          sync.Mutex
	positions   map[string]*types.Position
	adjustments map[string][]*types.PositionAdjustment
	spreads     []*types.SpreadRecord
	failures    map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions:   make(map[string]*types.Position),
		adjustments: make(map[string][]*types.PositionAdjustment),
		failures:    make(map[string]int),
	}
}

// FailNext makes the next n calls of the named operation ("create",
// "update", "append", "get", "find", "spread") return an error.
func (s *MemoryStore) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = n
}

func (s *MemoryStore) shouldFail(op string) bool {
	if s.failures[op] > 0 {
		s.failures[op]--
		return true
	}
	return false
}

func clonePosition(pos *types.Position) *types.Position {
	cp := *pos
	cp.SpotOrderIDs = append([]string(nil), pos.SpotOrderIDs...)
	cp.FuturesOrderIDs = append([]string(nil), pos.FuturesOrderIDs...)
	if pos.ClosedAt != nil {
		t := *pos.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

// CreatePosition stores a copy of the position.
func (s *MemoryStore) CreatePosition(ctx context.Context, pos *types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("create") {
		return fmt.Errorf("injected create failure")
	}
	s.positions[pos.ID] = clonePosition(pos)
	return nil
}

// UpdatePosition replaces the stored copy of the position.
func (s *MemoryStore) UpdatePosition(ctx context.Context, pos *types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("update") {
		return fmt.Errorf("injected update failure")
	}
	if _, ok := s.positions[pos.ID]; !ok {
		return fmt.Errorf("position %s not found", pos.ID)
	}
	s.positions[pos.ID] = clonePosition(pos)
	return nil
}

// AppendAdjustment records an adjustment.
func (s *MemoryStore) AppendAdjustment(ctx context.Context, adj *types.PositionAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("append") {
		return fmt.Errorf("injected append failure")
	}
	cp := *adj
	s.adjustments[adj.PositionID] = append(s.adjustments[adj.PositionID], &cp)
	return nil
}

// GetPosition returns a copy of the position, or nil if absent.
func (s *MemoryStore) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("get") {
		return nil, fmt.Errorf("injected get failure")
	}
	pos, ok := s.positions[id]
	if !ok {
		return nil, nil
	}
	return clonePosition(pos), nil
}

// FindActivePosition returns the non-terminal position for symbol.
func (s *MemoryStore) FindActivePosition(ctx context.Context, symbol string) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("find") {
		return nil, fmt.Errorf("injected find failure")
	}
	for _, pos := range s.positions {
		if pos.Symbol == symbol && pos.Status.Active() {
			return clonePosition(pos), nil
		}
	}
	return nil, nil
}

// OpenPositions returns copies of all non-terminal positions.
func (s *MemoryStore) OpenPositions(ctx context.Context) ([]*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Position
	for _, pos := range s.positions {
		if pos.Status.Active() {
			out = append(out, clonePosition(pos))
		}
	}
	return out, nil
}

// ClosedPositions returns copies of all closed positions. The day
// window is ignored in memory.
func (s *MemoryStore) ClosedPositions(ctx context.Context, sinceDays int) ([]*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Position
	for _, pos := range s.positions {
		if pos.Status == types.StatusClosed {
			out = append(out, clonePosition(pos))
		}
	}
	return out, nil
}

// StoreSpread records a spread observation.
func (s *MemoryStore) StoreSpread(ctx context.Context, rec *types.SpreadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shouldFail("spread") {
		return fmt.Errorf("injected spread failure")
	}
	cp := *rec
	s.spreads = append(s.spreads, &cp)
	return nil
}

// RecentSpreads returns all recorded spreads, newest last.
func (s *MemoryStore) RecentSpreads(ctx context.Context, symbol string, hours int) ([]*types.SpreadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.SpreadRecord
	for _, rec := range s.spreads {
		if symbol == "" || rec.Symbol == symbol {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Adjustments returns the recorded adjustments for a position.
func (s *MemoryStore) Adjustments(positionID string) []*types.PositionAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.PositionAdjustment, len(s.adjustments[positionID]))
	copy(out, s.adjustments[positionID])
	return out
}

// SpreadCount returns the number of stored spread records.
func (s *MemoryStore) SpreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spreads)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// MockNotifier records every message it is asked to send.
type MockNotifier struct {
	mu       sync.Mutex
	Messages []string
}

// NewMockNotifier creates an empty mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send records the message.
func (n *MockNotifier) Send(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, message)
}

// Sent returns a copy of the recorded messages.
func (n *MockNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.Messages))
	copy(out, n.Messages)
	return out
}
