// Package lifecycle manages the single open option position: entry, price
// tracking, the milestone ladder with its trailing stop ratchet, the
// prioritized exit cascade and the post-exit entry cooldown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/events"
	"options-scalper-bot/internal/indicator"
	"options-scalper-bot/internal/scenario"
)

// Tolerance when matching the stop loss against entry/milestone prices to
// classify a trailing stop hit.
const stopMatchTolerance = 1e-6

var (
	// ErrPositionActive rejects an entry while an order occupies the slot.
	ErrPositionActive = errors.New("an order is already active")
	// ErrCooldownActive rejects an entry during the post-exit cooldown.
	ErrCooldownActive = errors.New("entry blocked by cooldown")
	// ErrNoEntrySignal rejects an entry for a negative decision.
	ErrNoEntrySignal = errors.New("decision does not signal entry")
)

// Manager owns the single active order slot. All mutations go through
// TryOpen and ProcessTick under one lock; everything else reads copies.
// The write path is intended to run on a single goroutine (the tick loop);
// the lock makes concurrent readers safe, not concurrent writers correct.
type Manager struct {
	cfg         config.LifecycleConfig
	cooldownCfg config.CooldownConfig
	quantity    int

	pricing     PricingOracle
	sizer       RiskSizer
	signals     SignalTracker
	priceAction PriceActionTracker
	store       OrderStore
	stateStore  StateStore
	bus         *events.EventBus
	logger      zerolog.Logger

	location *time.Location
	now      func() time.Time

	mu             sync.RWMutex
	orders         map[string]*Order // registry of all orders this session
	activeID       string
	lastExitReason ExitReason
	lastExitTime   time.Time
	pendingSaveID  string // closed order whose persistence failed, retried next tick
}

// ManagerParams bundles the manager's collaborators.
type ManagerParams struct {
	Lifecycle   config.LifecycleConfig
	Cooldown    config.CooldownConfig
	Quantity    int
	Pricing     PricingOracle
	Sizer       RiskSizer
	Signals     SignalTracker
	PriceAction PriceActionTracker
	Store       OrderStore
	StateStore  StateStore
	Bus         *events.EventBus
}

// NewManager creates the position manager.
func NewManager(p ManagerParams, logger zerolog.Logger) (*Manager, error) {
	if p.Pricing == nil {
		return nil, errors.New("pricing oracle is required")
	}
	if p.Sizer == nil {
		return nil, errors.New("risk sizer is required")
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", p.Quantity)
	}

	location, err := time.LoadLocation(p.Lifecycle.TradingTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid trading time zone %q: %w", p.Lifecycle.TradingTimeZone, err)
	}

	return &Manager{
		cfg:         p.Lifecycle,
		cooldownCfg: p.Cooldown,
		quantity:    p.Quantity,
		pricing:     p.Pricing,
		sizer:       p.Sizer,
		signals:     p.Signals,
		priceAction: p.PriceAction,
		store:       p.Store,
		stateStore:  p.StateStore,
		bus:         p.Bus,
		logger:      logger.With().Str("component", "PositionManager").Logger(),
		location:    location,
		now:         time.Now,
		orders:      make(map[string]*Order),
	}, nil
}

// TryOpen opens a new order for a passing entry decision. It enforces the
// single-position invariant and the entry cooldown, then materializes the
// order from the pricing and sizing oracles. Oracle failure skips the entry
// for this tick; no partial order state is committed.
func (m *Manager) TryOpen(ctx context.Context, decision scenario.EntryDecision, tick indicator.Tick) (*Order, error) {
	if !decision.ShouldEntry {
		return nil, ErrNoEntrySignal
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID != "" {
		return nil, ErrPositionActive
	}
	if blocked, reason := m.cooldownBlocked(m.now()); blocked {
		m.publish(events.EventEntryRejected, map[string]interface{}{"reason": reason})
		return nil, fmt.Errorf("%w: %s", ErrCooldownActive, reason)
	}

	pricing, err := m.pricing.GetEntryPricing(decision.MarketDirection)
	if err != nil {
		m.logger.Error().Err(err).Str("direction", string(decision.MarketDirection)).
			Msg("Entry pricing failed, skipping entry this tick")
		return nil, fmt.Errorf("entry pricing: %w", err)
	}

	stopPoints := m.sizer.StopLossPoints(pricing.IndexPrice)
	targetPoints := m.sizer.TargetPoints(stopPoints)

	orderType := OrderTypeCallBuy
	if decision.MarketDirection == scenario.DirectionPut {
		orderType = OrderTypePutBuy
	}

	order := &Order{
		ID:              uuid.New().String(),
		OrderType:       orderType,
		TradingSymbol:   pricing.TradingSymbol,
		InstrumentToken: pricing.InstrumentToken,
		EntryPrice:      pricing.EntryPrice,
		EntryIndexPrice: pricing.IndexPrice,
		StopLossPrice:   pricing.EntryPrice - stopPoints,
		TargetPrice:     pricing.EntryPrice + targetPoints,
		Quantity:        m.quantity,
		Status:          StatusActive,
		Milestones:      BuildMilestones(pricing.EntryPrice, targetPoints, m.cfg.MilestoneStepPoints),
		CurrentPrice:    pricing.EntryPrice,
		MinIndexPrice:   tick.Price,
		MaxIndexPrice:   tick.Price,
		EntryTime:       m.now(),
		ScenarioName:    decision.ScenarioName,
	}

	m.orders[order.ID] = order
	m.activeID = order.ID

	m.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.TradingSymbol).
		Str("type", string(order.OrderType)).
		Float64("entry", order.EntryPrice).
		Float64("stop_loss", order.StopLossPrice).
		Float64("target", order.TargetPrice).
		Int("milestones", len(order.Milestones)).
		Str("scenario", order.ScenarioName).
		Msg("Order opened")

	m.publish(events.EventOrderOpened, map[string]interface{}{
		"order_id":  order.ID,
		"symbol":    order.TradingSymbol,
		"type":      string(order.OrderType),
		"entry":     order.EntryPrice,
		"stop_loss": order.StopLossPrice,
		"target":    order.TargetPrice,
		"scenario":  order.ScenarioName,
	})
	m.saveSnapshot(ctx, order)

	return order.Clone(), nil
}

// ProcessTick advances the active order for one tick: refresh the option
// price, track index extremes, advance the milestone ladder (ratcheting the
// stop), then run the exit cascade. Returns the closed order when an exit
// fired, nil otherwise. Reprocessing the same tick is idempotent.
func (m *Manager) ProcessTick(ctx context.Context, tick indicator.Tick) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retryPendingSave(ctx)

	// Ticks also drive cooldown expiry while no order is open.
	if m.activeID == "" {
		m.cooldownBlocked(m.now())
		return nil, nil
	}

	order := m.orders[m.activeID]

	price, err := m.pricing.GetCurrentPrice(order.InstrumentToken)
	if err != nil {
		// Tolerate oracle latency and failure: log and act next tick.
		m.logger.Warn().Err(err).Str("order_id", order.ID).Msg("Price refresh failed, skipping tick")
		return nil, nil
	}
	order.CurrentPrice = price

	if tick.Price > 0 {
		if tick.Price < order.MinIndexPrice || order.MinIndexPrice == 0 {
			order.MinIndexPrice = tick.Price
		}
		if tick.Price > order.MaxIndexPrice {
			order.MaxIndexPrice = tick.Price
		}
	}

	if m.advanceMilestones(order, price) {
		// Keep the restart snapshot current with the ratcheted stop.
		m.saveSnapshot(ctx, order)
	}

	if m.priceAction != nil && m.cfg.PriceMovementExitEnabled {
		m.priceAction.Track(order.ID, price)
	}

	reason, detail, shouldExit := m.evaluateExit(order, price)
	if !shouldExit {
		return nil, nil
	}

	m.finalizeExit(ctx, order, price, tick.Price, reason, detail)
	return order.Clone(), nil
}

// advanceMilestones marks newly reached rungs and ratchets the stop loss.
// The stop always trails exactly one rung behind the highest hit milestone:
// hitting milestone k moves it to milestone k-1's target, or to the entry
// price for k=1. It never skips ahead and never retreats; the TargetHit
// flag makes replaying a tick a no-op. Reports whether any rung was newly
// marked this tick.
func (m *Manager) advanceMilestones(order *Order, price float64) bool {
	advanced := false
	for i := range order.Milestones {
		ms := &order.Milestones[i]
		if ms.TargetHit {
			continue
		}
		if price < ms.TargetPrice {
			break
		}

		hitAt := m.now()
		advanced = true
		ms.TargetHit = true
		ms.HitAt = &hitAt
		ms.ProfitAtMilestone = ms.Points * float64(order.Quantity)
		order.MilestoneHistory = append(order.MilestoneHistory, MilestoneEvent{
			Number: ms.Number,
			Price:  price,
			Time:   hitAt,
		})

		newStop := order.EntryPrice
		if i > 0 {
			newStop = order.Milestones[i-1].TargetPrice
		}
		if newStop > order.StopLossPrice {
			old := order.StopLossPrice
			order.StopLossPrice = newStop
			m.logger.Info().
				Str("order_id", order.ID).
				Int("milestone", ms.Number).
				Float64("old_stop", old).
				Float64("new_stop", newStop).
				Msg("Milestone hit, stop loss ratcheted")
			m.publish(events.EventStopLossRatcheted, map[string]interface{}{
				"order_id": order.ID,
				"old_stop": old,
				"new_stop": newStop,
			})
		}

		m.publish(events.EventMilestoneHit, map[string]interface{}{
			"order_id":  order.ID,
			"symbol":    order.TradingSymbol,
			"milestone": ms.Number,
			"price":     price,
			"stop_loss": order.StopLossPrice,
		})
	}
	return advanced
}

// evaluateExit runs the exit cascade in strict priority order; the first
// firing check wins and lower-priority checks are not evaluated. Disabled
// checks are skipped entirely rather than treated as always-pass.
func (m *Manager) evaluateExit(order *Order, price float64) (ExitReason, string, bool) {
	// 1. Stop loss / target
	if m.cfg.StopLossTargetEnabled {
		if order.StopLossPrice <= 0 || order.TargetPrice <= 0 {
			// Invariant violation: an active order without protective
			// levels cannot be managed, terminate it.
			return ExitForce, "missing stop loss or target on active order", true
		}
		if price <= order.StopLossPrice {
			if m.isTrailedStop(order) {
				return ExitTrailingStop, fmt.Sprintf("price %.2f hit trailed stop %.2f", price, order.StopLossPrice), true
			}
			return ExitStopLoss, fmt.Sprintf("price %.2f hit stop %.2f", price, order.StopLossPrice), true
		}
		if price >= order.TargetPrice {
			return ExitTarget, fmt.Sprintf("price %.2f reached target %.2f", price, order.TargetPrice), true
		}
	}

	// 2. Strategy-based exit
	if m.cfg.StrategyExitEnabled && m.signals != nil {
		if exit, reason := m.signals.ShouldExit(order); exit {
			return ExitSignal, reason, true
		}
	}

	// 3. Price-movement exit
	if m.cfg.PriceMovementExitEnabled && m.priceAction != nil {
		if exit, detail := m.priceAction.CheckAdverseMovement(order.ID); exit {
			return ExitPriceMovement, detail, true
		}
	}

	// 4. Time-based exit, only while no milestone has ever been hit
	if m.cfg.TimeBasedExitEnabled && !order.HasMilestoneHit() {
		held := m.now().In(m.location).Sub(order.EntryTime.In(m.location))
		maxHold := time.Duration(m.cfg.MaxHoldingMinutes) * time.Minute
		if held >= maxHold {
			return ExitTimeBased, fmt.Sprintf("held %s exceeds maximum %s", held.Round(time.Second), maxHold), true
		}
	}

	return "", "", false
}

// isTrailedStop reports whether the current stop numerically matches the
// entry price or any milestone target, i.e. it has been ratcheted.
func (m *Manager) isTrailedStop(order *Order) bool {
	if math.Abs(order.StopLossPrice-order.EntryPrice) <= stopMatchTolerance {
		return true
	}
	for i := range order.Milestones {
		if math.Abs(order.StopLossPrice-order.Milestones[i].TargetPrice) <= stopMatchTolerance {
			return true
		}
	}
	return false
}

// finalizeExit transitions the order to EXITED, records P&L, frees the
// active slot and arms the cooldown. Caller holds the write lock.
func (m *Manager) finalizeExit(ctx context.Context, order *Order, price, indexPrice float64, reason ExitReason, detail string) {
	exitTime := m.now()
	order.Status = StatusExited
	order.ExitPrice = price
	order.ExitIndexPrice = indexPrice
	order.ExitTime = &exitTime
	order.ExitReason = reason
	order.ExitDetail = detail
	// Long premium on both sides, so no direction-dependent sign flip.
	order.TotalPoints = price - order.EntryPrice
	order.TotalProfit = order.TotalPoints * float64(order.Quantity)

	m.activeID = ""
	m.lastExitReason = reason
	m.lastExitTime = exitTime

	if m.priceAction != nil {
		m.priceAction.Reset(order.ID)
	}

	m.logger.Info().
		Str("order_id", order.ID).
		Str("reason", string(reason)).
		Str("detail", detail).
		Float64("exit_price", price).
		Float64("points", order.TotalPoints).
		Float64("profit", order.TotalProfit).
		Msg("Order exited")

	m.publish(events.EventOrderExited, map[string]interface{}{
		"order_id":    order.ID,
		"symbol":      order.TradingSymbol,
		"reason":      string(reason),
		"entry_price": order.EntryPrice,
		"exit_price":  price,
		"points":      order.TotalPoints,
		"profit":      order.TotalProfit,
	})
	if m.isBlockingReason(reason) && m.cooldownCfg.Enabled {
		m.publish(events.EventCooldownStarted, map[string]interface{}{
			"reason":    string(reason),
			"timeframe": m.cooldownCfg.Timeframe,
		})
	}

	if m.store != nil {
		if err := m.store.SaveClosedOrder(ctx, order); err != nil {
			m.logger.Error().Err(err).Str("order_id", order.ID).Msg("Persisting closed order failed, will retry")
			m.pendingSaveID = order.ID
		}
	}
	if m.stateStore != nil {
		if err := m.stateStore.ClearActiveOrder(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Clearing active order snapshot failed")
		}
		if err := m.stateStore.SaveLastExit(ctx, reason, exitTime); err != nil {
			m.logger.Warn().Err(err).Msg("Persisting exit state failed")
		}
	}
}

// RestoreLastExit rehydrates the post-exit state recorded by a previous run
// so the entry cooldown survives a restart. Call before the tick loop starts;
// zero values are ignored.
func (m *Manager) RestoreLastExit(reason ExitReason, exitedAt time.Time) {
	if reason == "" || exitedAt.IsZero() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastExitReason = reason
	m.lastExitTime = exitedAt
}

func (m *Manager) retryPendingSave(ctx context.Context) {
	if m.pendingSaveID == "" || m.store == nil {
		return
	}
	order, ok := m.orders[m.pendingSaveID]
	if !ok {
		m.pendingSaveID = ""
		return
	}
	if err := m.store.SaveClosedOrder(ctx, order); err != nil {
		m.logger.Warn().Err(err).Str("order_id", order.ID).Msg("Retrying closed order persistence failed")
		return
	}
	m.pendingSaveID = ""
}

func (m *Manager) saveSnapshot(ctx context.Context, order *Order) {
	if m.stateStore == nil {
		return
	}
	if err := m.stateStore.SaveActiveOrder(ctx, order); err != nil {
		m.logger.Warn().Err(err).Str("order_id", order.ID).Msg("Saving active order snapshot failed")
	}
}

func (m *Manager) publish(eventType events.EventType, data map[string]interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{Type: eventType, Timestamp: m.now(), Data: data})
}

// HasActiveOrder reports whether the active slot is occupied.
func (m *Manager) HasActiveOrder() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID != ""
}

// ActiveOrder returns a copy of the active order, if any.
func (m *Manager) ActiveOrder() (*Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return nil, false
	}
	return m.orders[m.activeID].Clone(), true
}

// GetOrder returns a copy of any known order by id.
func (m *Manager) GetOrder(id string) (*Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

// Orders returns copies of all orders seen this session, active first.
func (m *Manager) Orders() []*Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Order, 0, len(m.orders))
	if m.activeID != "" {
		out = append(out, m.orders[m.activeID].Clone())
	}
	for id, order := range m.orders {
		if id == m.activeID {
			continue
		}
		out = append(out, order.Clone())
	}
	return out
}

// LastExit returns the most recent exit reason and time, zero values when
// the cooldown state has been cleared.
func (m *Manager) LastExit() (ExitReason, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastExitReason, m.lastExitTime
}

// CooldownActive reports whether a cooldown currently blocks entries. Unlike
// the internal check it does not clear expired state; reads stay
// side-effect-free.
func (m *Manager) CooldownActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.cooldownCfg.Enabled || m.lastExitTime.IsZero() || !m.isBlockingReason(m.lastExitReason) {
		return false
	}
	duration, ok := timeframeDurations[m.cooldownCfg.Timeframe]
	if !ok {
		duration = 5 * time.Minute
	}
	candleClose := candleOpenAt(m.lastExitTime.In(m.location), duration).Add(duration)
	return m.now().In(m.location).Before(candleClose)
}
