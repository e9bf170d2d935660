package types

import "time"

// PositionStatus is the lifecycle state of a position.
// Closed is terminal: a position is never deleted and never reopens.
type PositionStatus string

const (
	StatusOpen            PositionStatus = "open"
	StatusPartiallyClosed PositionStatus = "partially_closed"
	StatusClosed          PositionStatus = "closed"
)

// Active reports whether the position can still be increased or exited.
func (s PositionStatus) Active() bool {
	return s == StatusOpen || s == StatusPartiallyClosed
}

// Position is a paired spot-long / futures-short exposure on one symbol.
// Entered volumes accumulate across entry increases; remaining volumes
// decrement across exits. All mutation goes through the ledger.
type Position struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	SpotExchange    string         `json:"spot_exchange"`
	FuturesExchange string         `json:"futures_exchange"`
	Status          PositionStatus `json:"status"`

	InitialEntrySpread float64 `json:"initial_entry_spread"`

	SpotCoins    float64 `json:"spot_coins"`    // entered spot volume, coins
	FuturesCoins float64 `json:"futures_coins"` // entered futures volume, coins
	SpotUSDT     float64 `json:"spot_usdt"`     // entered spot volume, USDT
	FuturesUSDT  float64 `json:"futures_usdt"`  // entered futures volume, USDT

	SpotAvgPrice    float64 `json:"spot_avg_price"`
	FuturesAvgPrice float64 `json:"futures_avg_price"`

	RemainingSpotCoins    float64 `json:"remaining_spot_coins"`
	RemainingFuturesCoins float64 `json:"remaining_futures_coins"`

	PnLUSDT float64 `json:"pnl_usdt"`

	SpotOrderIDs    []string `json:"spot_order_ids"`
	FuturesOrderIDs []string `json:"futures_order_ids"`

	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// AdjustmentType distinguishes the events in a position's audit trail.
type AdjustmentType string

const (
	AdjustmentEntry        AdjustmentType = "entry"
	AdjustmentIncrease     AdjustmentType = "increase"
	AdjustmentPartialClose AdjustmentType = "partial_close"
)

// PositionAdjustment is one append-only record of an entry, an entry
// increase, or a partial/full exit. The sum of PnLUSDT over all of a
// position's adjustments equals the position's final PnL.
type PositionAdjustment struct {
	ID             string         `json:"id"`
	PositionID     string         `json:"position_id"`
	Type           AdjustmentType `json:"type"`
	Spread         float64        `json:"spread"` // entry or exit spread at the time of the event
	SpotCoins      float64        `json:"spot_coins"`
	FuturesCoins   float64        `json:"futures_coins"`
	SpotPrice      float64        `json:"spot_price"`
	FuturesPrice   float64        `json:"futures_price"`
	PnLUSDT        float64        `json:"pnl_usdt"`
	SpotOrderID    string         `json:"spot_order_id"`
	FuturesOrderID string         `json:"futures_order_id"`
	CreatedAt      time.Time      `json:"created_at"`
}
