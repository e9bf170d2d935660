package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/basis-arb/pkg/cache"
)

// CachedGateway wraps a Gateway and caches minimum trade amounts, which
// change rarely but are needed on every exit evaluation.
type CachedGateway struct {
	Gateway
	cache cache.Cache
	ttl   time.Duration
}

// NewCached creates a caching wrapper around inner.
func NewCached(inner Gateway, c cache.Cache) *CachedGateway {
	return &CachedGateway{
		Gateway: inner,
		cache:   c,
		ttl:     1 * time.Hour,
	}
}

// MinTradeAmount returns the cached minimum for (exchange, symbol),
// fetching through on a miss.
func (g *CachedGateway) MinTradeAmount(ctx context.Context, exchangeID, symbol string) (float64, error) {
	key := fmt.Sprintf("min-amount:%s:%s", exchangeID, symbol)
	if cached, ok := g.cache.Get(key); ok {
		if amount, ok := cached.(float64); ok {
			MinAmountCacheHitsTotal.Inc()
			return amount, nil
		}
	}
	MinAmountCacheMissesTotal.Inc()

	amount, err := g.Gateway.MinTradeAmount(ctx, exchangeID, symbol)
	if err != nil {
		return 0, err
	}

	g.cache.Set(key, amount, g.ttl)
	return amount, nil
}
