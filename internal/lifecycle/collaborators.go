package lifecycle

import (
	"context"
	"time"

	"options-scalper-bot/internal/scenario"
)

// EntryPricing is the pricing oracle's answer for a fresh entry: the
// selected contract and its prices.
type EntryPricing struct {
	TradingSymbol   string  `json:"trading_symbol"`
	InstrumentToken string  `json:"instrument_token"`
	EntryPrice      float64 `json:"entry_price"`
	IndexPrice      float64 `json:"index_price"`
}

// PricingOracle selects contracts and quotes option premiums. Strike
// selection and greeks live behind this interface, outside the core.
type PricingOracle interface {
	GetEntryPricing(direction scenario.Direction) (*EntryPricing, error)
	GetCurrentPrice(instrumentToken string) (float64, error)
}

// RiskSizer computes volatility-scaled stop-loss and target distances.
type RiskSizer interface {
	StopLossPoints(referencePrice float64) float64
	TargetPoints(stopLossPoints float64) float64
}

// SignalTracker reports when the original entry thesis has invalidated.
type SignalTracker interface {
	ShouldExit(order *Order) (exit bool, reason string)
}

// PriceActionTracker watches the option LTP stream for adverse movement
// patterns such as a sharp reversal from a local peak.
type PriceActionTracker interface {
	Track(orderID string, price float64)
	CheckAdverseMovement(orderID string) (exit bool, detail string)
	Reset(orderID string)
}

// OrderStore persists closed orders.
type OrderStore interface {
	SaveClosedOrder(ctx context.Context, order *Order) error
}

// StateStore mirrors restart-survivable state: the active-order snapshot and
// the last exit that arms the entry cooldown. Failures are tolerated; the
// in-memory registry stays authoritative.
type StateStore interface {
	SaveActiveOrder(ctx context.Context, order *Order) error
	ClearActiveOrder(ctx context.Context) error
	SaveLastExit(ctx context.Context, reason ExitReason, exitedAt time.Time) error
}
