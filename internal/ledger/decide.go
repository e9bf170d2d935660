package ledger

import (
	"github.com/mselser95/basis-arb/internal/spread"
	"github.com/mselser95/basis-arb/pkg/types"
)

// ShouldClose decides whether and how much of a position to close given
// an exit spread result. It is pure: no state is read or mutated beyond
// the arguments.
//
// The close size is the smaller of the remaining position and the depth
// the books can absorb. When the leftover after closing would fall
// below the exchange minimum trade amount, the full remaining position
// is closed instead, so no unclosable dust remainder is left behind.
func ShouldClose(pos *types.Position, exit *spread.ExitResult, minTradeAmount float64) (bool, float64) {
	if !exit.CloseOpportunity {
		return false, 0
	}

	coinsToClose := min(pos.RemainingSpotCoins, exit.TradableCoins)
	if pos.RemainingSpotCoins-coinsToClose < minTradeAmount {
		coinsToClose = pos.RemainingSpotCoins
	}
	if coinsToClose <= 0 {
		return false, 0
	}
	return true, coinsToClose
}
