package broker

import (
	"time"

	"options-scalper-bot/internal/cache"
	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/scenario"
)

// CachedOracle wraps a pricing oracle with a short TTL on LTP lookups so a
// burst of ticks inside one refresh window does not hammer the pricing
// service. Entry pricing is never cached.
type CachedOracle struct {
	inner lifecycle.PricingOracle
	cache *cache.TTLCache
	ttl   time.Duration
}

// NewCachedOracle wraps an oracle with the given LTP TTL.
func NewCachedOracle(inner lifecycle.PricingOracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		inner: inner,
		cache: cache.New(),
		ttl:   ttl,
	}
}

// GetEntryPricing delegates to the wrapped oracle.
func (c *CachedOracle) GetEntryPricing(direction scenario.Direction) (*lifecycle.EntryPricing, error) {
	return c.inner.GetEntryPricing(direction)
}

// GetCurrentPrice serves the LTP from cache within the TTL window.
func (c *CachedOracle) GetCurrentPrice(instrumentToken string) (float64, error) {
	if v, ok := c.cache.Get(instrumentToken); ok {
		return v.(float64), nil
	}
	price, err := c.inner.GetCurrentPrice(instrumentToken)
	if err != nil {
		return 0, err
	}
	c.cache.Set(instrumentToken, price, c.ttl)
	return price, nil
}
