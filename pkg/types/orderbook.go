package types

import "time"

// Level is a single order book level: a price and the quantity resting at it.
type Level struct {
	Price    float64
	Quantity float64
}

// Notional returns the USDT value of the full level.
func (l Level) Notional() float64 {
	return l.Price * l.Quantity
}

// OrderBook holds one side's view of a market at a point in time.
// Asks are sorted by ascending price, bids by descending price.
type OrderBook struct {
	Exchange  string
	Symbol    string
	Asks      []Level
	Bids      []Level
	FetchedAt time.Time
}

// BestAsk returns the lowest ask price, or 0 if there is no ask depth.
func (b *OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// BestBid returns the highest bid price, or 0 if there is no bid depth.
func (b *OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// Validate rejects malformed books before any spread computation: every
// price and quantity must be positive, asks must be non-decreasing in
// price and bids non-increasing. An empty side is valid (no depth).
func (b *OrderBook) Validate() error {
	for i, lvl := range b.Asks {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			return &ValidationError{
				Exchange: b.Exchange,
				Symbol:   b.Symbol,
				Reason:   "ask level with non-positive price or quantity",
			}
		}
		if i > 0 && lvl.Price < b.Asks[i-1].Price {
			return &ValidationError{
				Exchange: b.Exchange,
				Symbol:   b.Symbol,
				Reason:   "ask prices not sorted ascending",
			}
		}
	}
	for i, lvl := range b.Bids {
		if lvl.Price <= 0 || lvl.Quantity <= 0 {
			return &ValidationError{
				Exchange: b.Exchange,
				Symbol:   b.Symbol,
				Reason:   "bid level with non-positive price or quantity",
			}
		}
		if i > 0 && lvl.Price > b.Bids[i-1].Price {
			return &ValidationError{
				Exchange: b.Exchange,
				Symbol:   b.Symbol,
				Reason:   "bid prices not sorted descending",
			}
		}
	}
	return nil
}

// OrderAck is the exchange's acknowledgement of a placed order.
type OrderAck struct {
	ID string
}
