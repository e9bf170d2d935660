// Package gateway talks to the exchanges: order book fetches, market
// limits, and order placement. All failures are non-fatal to the
// process; callers decide what to skip or abort.
package gateway

import (
	"context"

	"github.com/mselser95/basis-arb/pkg/types"
)

// MarketType selects the spot or futures market of a venue.
type MarketType string

const (
	Spot    MarketType = "spot"
	Futures MarketType = "futures"
)

// Gateway is the exchange surface the core consumes.
type Gateway interface {
	// FetchOrderBook returns up to limit levels per side.
	FetchOrderBook(ctx context.Context, exchangeID string, market MarketType, symbol string, limit int) (*types.OrderBook, error)

	// MinTradeAmount returns the exchange's minimum order quantity in
	// coins for the spot symbol.
	MinTradeAmount(ctx context.Context, exchangeID, symbol string) (float64, error)

	ExecuteSpotBuy(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error)
	ExecuteSpotSell(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error)
	ExecuteFuturesBuy(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error)
	ExecuteFuturesSell(ctx context.Context, exchangeID, symbol string, quantity, price float64) (*types.OrderAck, error)
}
