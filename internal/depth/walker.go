// Package depth converts order book levels into achievable
// depth-weighted execution prices.
package depth

import "github.com/mselser95/basis-arb/pkg/types"

// WalkResult is the outcome of consuming levels up to a target.
// FilledQuantity and FilledNotional fall short of the request when the
// book is too shallow; insufficient depth is not an error.
type WalkResult struct {
	WeightedPrice  float64
	FilledQuantity float64
	FilledNotional float64
}

// WalkByNotional consumes levels in the order given until the cumulative
// notional reaches targetNotional, taking a fractional quantity from the
// last level if needed. Callers pass asks (ascending) for buy legs and
// bids (descending) for sell legs; the walker itself is order-agnostic.
func WalkByNotional(levels []types.Level, targetNotional float64) WalkResult {
	if targetNotional <= 0 || len(levels) == 0 {
		return WalkResult{}
	}

	var notional, quantity float64
	for _, lvl := range levels {
		levelNotional := lvl.Notional()
		if notional+levelNotional <= targetNotional {
			notional += levelNotional
			quantity += lvl.Quantity
			continue
		}
		remaining := targetNotional - notional
		notional += remaining
		quantity += remaining / lvl.Price
		break
	}

	if quantity == 0 {
		return WalkResult{}
	}
	return WalkResult{
		WeightedPrice:  notional / quantity,
		FilledQuantity: quantity,
		FilledNotional: notional,
	}
}

// WalkByQuantity is the quantity-target counterpart of WalkByNotional.
func WalkByQuantity(levels []types.Level, targetQuantity float64) WalkResult {
	if targetQuantity <= 0 || len(levels) == 0 {
		return WalkResult{}
	}

	var notional, quantity float64
	for _, lvl := range levels {
		if quantity+lvl.Quantity <= targetQuantity {
			notional += lvl.Notional()
			quantity += lvl.Quantity
			continue
		}
		remaining := targetQuantity - quantity
		notional += remaining * lvl.Price
		quantity += remaining
		break
	}

	if quantity == 0 {
		return WalkResult{}
	}
	return WalkResult{
		WeightedPrice:  notional / quantity,
		FilledQuantity: quantity,
		FilledNotional: notional,
	}
}
