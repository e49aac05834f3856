// Package tracker implements the exit collaborators watched by the position
// manager: option price-action reversal detection and entry-thesis
// invalidation from the live regime stream.
package tracker

import (
	"fmt"
	"sync"

	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/scenario"
)

// ReversalTracker watches each order's premium stream and flags a sharp
// retracement from the local peak. Both sides are long premium, so a falling
// premium is always adverse.
type ReversalTracker struct {
	// DropPercent is the peak-to-current retracement that triggers an exit.
	DropPercent float64
	// MinGainPoints arms the tracker; small wobbles near entry are ignored.
	MinGainPoints float64

	mu    sync.Mutex
	peaks map[string]peakState
}

type peakState struct {
	entry float64
	peak  float64
	last  float64
}

// NewReversalTracker creates a tracker with the given retracement trigger.
func NewReversalTracker(dropPercent, minGainPoints float64) *ReversalTracker {
	return &ReversalTracker{
		DropPercent:   dropPercent,
		MinGainPoints: minGainPoints,
		peaks:         make(map[string]peakState),
	}
}

// Track records the latest premium for an order.
func (t *ReversalTracker) Track(orderID string, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.peaks[orderID]
	if !ok {
		t.peaks[orderID] = peakState{entry: price, peak: price, last: price}
		return
	}
	state.last = price
	if price > state.peak {
		state.peak = price
	}
	t.peaks[orderID] = state
}

// CheckAdverseMovement reports whether the premium retraced past the trigger.
func (t *ReversalTracker) CheckAdverseMovement(orderID string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.peaks[orderID]
	if !ok || state.peak <= 0 {
		return false, ""
	}
	if state.peak-state.entry < t.MinGainPoints {
		return false, ""
	}

	drop := (state.peak - state.last) / state.peak * 100
	if drop >= t.DropPercent {
		return true, fmt.Sprintf("premium retraced %.1f%% from peak %.2f", drop, state.peak)
	}
	return false, ""
}

// Reset drops an order's state after exit.
func (t *ReversalTracker) Reset(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peaks, orderID)
}

// RegimeMonitor implements entry-thesis invalidation: when the classified
// market direction opposes an open order for several consecutive ticks, the
// original signal is considered dead.
type RegimeMonitor struct {
	// OpposingStreakLimit is the consecutive opposing ticks needed to exit.
	OpposingStreakLimit int

	mu        sync.Mutex
	direction scenario.Direction
	suitable  bool
	streaks   map[string]int
}

// NewRegimeMonitor creates a monitor with the given streak trigger.
func NewRegimeMonitor(streakLimit int) *RegimeMonitor {
	return &RegimeMonitor{
		OpposingStreakLimit: streakLimit,
		streaks:             make(map[string]int),
	}
}

// Observe records the latest classified direction and suitability.
func (m *RegimeMonitor) Observe(direction scenario.Direction, suitable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direction = direction
	m.suitable = suitable
}

// ShouldExit reports whether the market has turned against the order.
func (m *RegimeMonitor) ShouldExit(order *lifecycle.Order) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opposing := false
	if m.suitable {
		switch order.OrderType {
		case lifecycle.OrderTypeCallBuy:
			opposing = m.direction == scenario.DirectionPut
		case lifecycle.OrderTypePutBuy:
			opposing = m.direction == scenario.DirectionCall
		}
	}

	if !opposing {
		m.streaks[order.ID] = 0
		return false, ""
	}

	m.streaks[order.ID]++
	if m.streaks[order.ID] >= m.OpposingStreakLimit {
		delete(m.streaks, order.ID)
		return true, fmt.Sprintf("market direction reversed against %s for %d consecutive ticks", order.OrderType, m.OpposingStreakLimit)
	}
	return false, ""
}
