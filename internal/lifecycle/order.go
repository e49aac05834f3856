package lifecycle

import (
	"time"
)

// OrderType is the instrument side. Both are long-premium buys, so profit
// sign never flips with direction.
type OrderType string

const (
	OrderTypeCallBuy OrderType = "CALL_BUY"
	OrderTypePutBuy  OrderType = "PUT_BUY"
)

// OrderStatus is the order state machine: ACTIVE then EXITED, terminal.
type OrderStatus string

const (
	StatusActive OrderStatus = "ACTIVE"
	StatusExited OrderStatus = "EXITED"
)

// ExitReason records why an order was closed.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "STOPLOSS_HIT"
	ExitTrailingStop  ExitReason = "TRAILING_STOPLOSS_HIT"
	ExitTarget        ExitReason = "TARGET_HIT"
	ExitForce         ExitReason = "FORCE_EXIT"
	ExitSignal        ExitReason = "EXIT_SIGNAL"
	ExitPriceMovement ExitReason = "PRICE_MOVEMENT_EXIT"
	ExitTimeBased     ExitReason = "TIME_BASED_EXIT"
)

// Milestone is one profit rung of the ladder. TargetHit is monotonic
// false to true.
type Milestone struct {
	Number            int        `json:"number"` // 1-based
	Points            float64    `json:"points"` // cumulative points from entry
	TargetPrice       float64    `json:"target_price"`
	TargetHit         bool       `json:"target_hit"`
	ProfitAtMilestone float64    `json:"profit_at_milestone"`
	HitAt             *time.Time `json:"hit_at,omitempty"`
}

// MilestoneEvent is an audit entry appended when a milestone is hit.
type MilestoneEvent struct {
	Number int       `json:"number"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Order is the single long-lived mutable entity of the pipeline. It is
// mutated only by the position manager under its lock; readers get copies.
type Order struct {
	ID               string           `json:"id"`
	OrderType        OrderType        `json:"order_type"`
	TradingSymbol    string           `json:"trading_symbol"`
	InstrumentToken  string           `json:"instrument_token"`
	EntryPrice       float64          `json:"entry_price"`
	EntryIndexPrice  float64          `json:"entry_index_price"`
	StopLossPrice    float64          `json:"stop_loss_price"` // ratchets upward only
	TargetPrice      float64          `json:"target_price"`    // fixed at creation
	Quantity         int              `json:"quantity"`
	Status           OrderStatus      `json:"status"`
	Milestones       []Milestone      `json:"milestones"`
	MilestoneHistory []MilestoneEvent `json:"milestone_history,omitempty"`
	CurrentPrice     float64          `json:"current_price"`
	MinIndexPrice    float64          `json:"min_index_price"`
	MaxIndexPrice    float64          `json:"max_index_price"`
	EntryTime        time.Time        `json:"entry_time"`
	ExitTime         *time.Time       `json:"exit_time,omitempty"`
	ExitPrice        float64          `json:"exit_price,omitempty"`
	ExitIndexPrice   float64          `json:"exit_index_price,omitempty"`
	ExitReason       ExitReason       `json:"exit_reason,omitempty"`
	ExitDetail       string           `json:"exit_detail,omitempty"`
	ScenarioName     string           `json:"scenario_name,omitempty"`
	TotalPoints      float64          `json:"total_points"`
	TotalProfit      float64          `json:"total_profit"`
}

// HasMilestoneHit reports whether any milestone was ever reached. Once true,
// the time-based exit is permanently disabled for this order.
func (o *Order) HasMilestoneHit() bool {
	for i := range o.Milestones {
		if o.Milestones[i].TargetHit {
			return true
		}
	}
	return false
}

// UnrealizedPoints returns the current open P&L in price units.
func (o *Order) UnrealizedPoints() float64 {
	if o.CurrentPrice <= 0 {
		return 0
	}
	return o.CurrentPrice - o.EntryPrice
}

// Clone returns a deep copy safe to hand to readers.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Milestones = make([]Milestone, len(o.Milestones))
	copy(cp.Milestones, o.Milestones)
	cp.MilestoneHistory = make([]MilestoneEvent, len(o.MilestoneHistory))
	copy(cp.MilestoneHistory, o.MilestoneHistory)
	if o.ExitTime != nil {
		t := *o.ExitTime
		cp.ExitTime = &t
	}
	return &cp
}

// BuildMilestones divides the target distance into equal rungs of stepPoints
// each, clipping the last rung so the final milestone price equals the
// target price exactly.
func BuildMilestones(entryPrice, targetPoints, stepPoints float64) []Milestone {
	if targetPoints <= 0 || stepPoints <= 0 {
		return nil
	}

	var milestones []Milestone
	number := 1
	for points := stepPoints; ; points += stepPoints {
		if points > targetPoints {
			points = targetPoints
		}
		milestones = append(milestones, Milestone{
			Number:      number,
			Points:      points,
			TargetPrice: entryPrice + points,
		})
		if points >= targetPoints {
			break
		}
		number++
	}
	return milestones
}
