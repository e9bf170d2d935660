package types

import "time"

// SpreadRecord is one persisted spread observation for a trading pair,
// kept for historical query and operator visibility.
type SpreadRecord struct {
	ID              int64  `json:"id"`
	Symbol          string `json:"symbol"`
	SpotExchange    string `json:"spot_exchange"`
	FuturesExchange string `json:"futures_exchange"`

	EntrySpread float64 `json:"entry_spread"`
	ExitSpread  float64 `json:"exit_spread"`

	SpotBestAsk    float64 `json:"spot_best_ask"`
	SpotBestBid    float64 `json:"spot_best_bid"`
	FuturesBestAsk float64 `json:"futures_best_ask"`
	FuturesBestBid float64 `json:"futures_best_bid"`

	SpotWeightedAsk    float64 `json:"spot_weighted_ask"`
	FuturesWeightedBid float64 `json:"futures_weighted_bid"`
	SpotWeightedBid    float64 `json:"spot_weighted_bid"`
	FuturesWeightedAsk float64 `json:"futures_weighted_ask"`

	TradableCoins float64 `json:"tradable_coins"`
	TradableUSDT  float64 `json:"tradable_usdt"`

	TradeOpportunity bool `json:"trade_opportunity"`
	CloseOpportunity bool `json:"close_opportunity"`

	CreatedAt time.Time `json:"created_at"`
}
