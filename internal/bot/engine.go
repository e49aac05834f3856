// Package bot runs the per-tick decision pipeline: indicator snapshot,
// regime classification, scenario evaluation and order lifecycle, on a
// single writer goroutine.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/indicator"
	"options-scalper-bot/internal/lifecycle"
	"options-scalper-bot/internal/regime"
	"options-scalper-bot/internal/scenario"
)

// SnapshotProvider is the indicator-computation collaborator: it turns a
// tick into the precomputed snapshot plus recent candles.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, tick indicator.Tick) (*indicator.Snapshot, []indicator.Candle, error)
}

// SignalScorer is the scoring collaborator: it weights snapshot signals
// into the composite quality score, direction-aware category scores and the
// dominant trend.
type SignalScorer interface {
	Score(ctx context.Context, snapshot *indicator.Snapshot) (quality float64, scores scenario.CategoryScoresByDirection, direction scenario.Direction, err error)
}

// SignalObserver receives the classified direction each tick. The exit-side
// regime monitor implements this to detect thesis invalidation.
type SignalObserver interface {
	Observe(direction scenario.Direction, suitable bool)
}

// DecisionRecorder appends entry decisions to the audit log.
type DecisionRecorder interface {
	SaveEntryDecision(ctx context.Context, decision scenario.EntryDecision, decidedAt time.Time) error
}

// Status is the read-only view of the last pipeline pass for monitoring.
type Status struct {
	LastTick     indicator.Tick         `json:"last_tick"`
	LastRegime   regime.MarketRegime    `json:"last_regime"`
	LastDecision scenario.EntryDecision `json:"last_decision"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Engine consumes ticks and drives the decision pipeline. One goroutine
// owns all writes; Status and the position manager's query surface serve
// concurrent readers.
type Engine struct {
	cfg        *config.Config
	classifier *regime.Classifier
	evaluator  *scenario.Evaluator
	manager    *lifecycle.Manager
	snapshots  SnapshotProvider
	scorer     SignalScorer
	recorder   DecisionRecorder
	observer   SignalObserver
	logger     zerolog.Logger

	statusMu sync.RWMutex
	status   Status

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine wires the pipeline.
func NewEngine(
	cfg *config.Config,
	classifier *regime.Classifier,
	evaluator *scenario.Evaluator,
	manager *lifecycle.Manager,
	snapshots SnapshotProvider,
	scorer SignalScorer,
	recorder DecisionRecorder,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		evaluator:  evaluator,
		manager:    manager,
		snapshots:  snapshots,
		scorer:     scorer,
		recorder:   recorder,
		logger:     logger.With().Str("component", "Engine").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// SetSignalObserver registers the per-tick direction observer. Must be
// called before Start.
func (e *Engine) SetSignalObserver(observer SignalObserver) {
	e.observer = observer
}

// Start launches the tick loop over the given stream.
func (e *Engine) Start(ctx context.Context, ticks <-chan indicator.Tick) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.stopChan:
				return
			case <-ctx.Done():
				return
			case tick, ok := <-ticks:
				if !ok {
					e.logger.Info().Msg("Tick stream closed, engine stopping")
					return
				}
				e.processTick(ctx, tick)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight tick to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()
}

// Status returns the last pipeline pass.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// processTick runs one full pipeline pass. A panic is confined to the tick:
// it is logged and the next tick starts clean.
func (e *Engine) processTick(ctx context.Context, tick indicator.Tick) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Tick processing panicked, continuing with next tick")
		}
	}()

	// Manage the open position first; its exit this tick frees the slot
	// only after the cooldown decides.
	if exited, err := e.manager.ProcessTick(ctx, tick); err != nil {
		e.logger.Error().Err(err).Msg("Order tick processing failed")
	} else if exited != nil {
		e.logger.Info().Str("order_id", exited.ID).Str("reason", string(exited.ExitReason)).Msg("Position closed")
	}

	snapshot, candles, err := e.snapshots.Snapshot(ctx, tick)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Snapshot unavailable, skipping evaluation")
		return
	}

	marketRegime := e.classifier.Classify(snapshot, candles)
	analysis := indicator.AnalyzeCandles(candles, e.cfg.RegimeConfig.LookbackCandles)
	filter := e.classifier.CheckEntryFilter(analysis, snapshot)

	decision := e.decide(ctx, snapshot, marketRegime, filter)

	if e.observer != nil {
		e.observer.Observe(decision.MarketDirection, marketRegime.IsSuitableForTrading)
	}

	e.statusMu.Lock()
	e.status = Status{
		LastTick:     tick,
		LastRegime:   marketRegime,
		LastDecision: decision,
		UpdatedAt:    time.Now(),
	}
	e.statusMu.Unlock()

	e.recordDecision(ctx, decision)

	if !decision.ShouldEntry {
		return
	}
	if !e.cfg.TradingConfig.Enabled || e.cfg.TradingConfig.DryRun {
		e.logger.Info().Str("scenario", decision.ScenarioName).Msg("Entry signal suppressed (trading disabled or dry run)")
		return
	}
	if e.manager.HasActiveOrder() {
		return
	}

	if _, err := e.manager.TryOpen(ctx, decision, tick); err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrPositionActive), errors.Is(err, lifecycle.ErrCooldownActive):
			e.logger.Debug().Err(err).Msg("Entry blocked")
		default:
			e.logger.Error().Err(err).Msg("Entry failed")
		}
	}
}

// decide runs the scoring collaborator and the scenario evaluator behind
// the regime gates.
func (e *Engine) decide(ctx context.Context, snapshot *indicator.Snapshot, marketRegime regime.MarketRegime, filter regime.EntryFilterResult) scenario.EntryDecision {
	if !marketRegime.IsSuitableForTrading {
		return scenario.EntryDecision{Reason: marketRegime.Reason}
	}

	quality, scores, direction, err := e.scorer.Score(ctx, snapshot)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Signal scoring failed, no entry this tick")
		return scenario.EntryDecision{Reason: "scoring unavailable"}
	}

	return e.evaluator.Evaluate(quality, filter, direction, scores)
}

func (e *Engine) recordDecision(ctx context.Context, decision scenario.EntryDecision) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.SaveEntryDecision(ctx, decision, time.Now()); err != nil {
		e.logger.Warn().Err(err).Msg("Recording entry decision failed")
	}
}
