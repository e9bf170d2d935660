package spread

import "time"

// EntryResult holds the entry-side spread computation for one pair.
// The reverse-direction weighted prices and the implied exit spread are
// included so callers get an exit reference without recomputation.
type EntryResult struct {
	Symbol     string
	ComputedAt time.Time

	SpotBestAsk    float64
	SpotBestBid    float64
	FuturesBestAsk float64
	FuturesBestBid float64

	SpotWeightedAsk    float64
	FuturesWeightedBid float64
	SpotWeightedBid    float64
	FuturesWeightedAsk float64

	EntrySpread float64 // percent
	ExitSpread  float64 // percent, at the same size

	TradableCoins float64
	TradableUSDT  float64

	TradeOpportunity bool
}

// ExitResult holds the exit-side spread computation for an open position.
type ExitResult struct {
	Symbol     string
	ComputedAt time.Time

	SpotWeightedBid    float64
	FuturesWeightedAsk float64

	ExitSpread float64 // percent

	// TradableCoins is capped by whichever leg has less depth.
	TradableCoins float64
	SpotUSDT      float64
	FuturesUSDT   float64

	CloseOpportunity bool
}
