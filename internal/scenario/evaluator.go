// Package scenario matches configured entry scenarios against per-tick
// quality and category scores. Scenarios are scanned in list order; the
// highest-scoring passing scenario authorizes an entry.
package scenario

import (
	"fmt"

	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/regime"
)

// Evaluator scans the configured scenario list. Read-mostly after
// construction; safe for concurrent use.
type Evaluator struct {
	scenarios         []Scenario
	defaultMinQuality float64
	logger            zerolog.Logger
}

// NewEvaluator validates and converts the raw scenario config. Malformed
// configuration fails here, at startup, not mid-evaluation.
func NewEvaluator(cfg config.ScenarioConfig, logger zerolog.Logger) (*Evaluator, error) {
	scenarios := make([]Scenario, 0, len(cfg.Entries))
	for i, entry := range cfg.Entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("scenario %d: name is required", i)
		}

		s := Scenario{
			Name:             entry.Name,
			MinQualityScore:  entry.MinQualityScore,
			CategoryMinimums: make(map[string]int),
		}
		if v := entry.Requirements.EMAMinScore; v != nil {
			s.CategoryMinimums[CategoryEMA] = *v
		}
		if v := entry.Requirements.FutureAndVolumeMinScore; v != nil {
			s.CategoryMinimums[CategoryFutureAndVolume] = *v
		}
		if v := entry.Requirements.CandlestickMinScore; v != nil {
			s.CategoryMinimums[CategoryCandlestick] = *v
		}
		if v := entry.Requirements.MomentumMinScore; v != nil {
			s.CategoryMinimums[CategoryMomentum] = *v
		}
		scenarios = append(scenarios, s)
	}

	return &Evaluator{
		scenarios:         scenarios,
		defaultMinQuality: cfg.DefaultMinQualityScore,
		logger:            logger.With().Str("component", "ScenarioEvaluator").Logger(),
	}, nil
}

// Scenarios returns the configured scenario list in evaluation order.
func (e *Evaluator) Scenarios() []Scenario {
	return e.scenarios
}

// Evaluate picks the highest-scoring passing scenario. Ties resolve to the
// first-listed scenario. The dominant direction is supplied by the caller
// and never recomputed here.
func (e *Evaluator) Evaluate(qualityScore float64, filter regime.EntryFilterResult, direction Direction, scores CategoryScoresByDirection) EntryDecision {
	decision := EntryDecision{
		QualityScore:    qualityScore,
		MarketDirection: direction,
		CategoryScores:  scores.For(direction),
	}

	if !filter.ConditionsMet {
		decision.Reason = filter.Reason
		return decision
	}

	var best *Scenario
	bestScore := 0.0
	for i := range e.scenarios {
		score, passed := e.scoreScenario(&e.scenarios[i], qualityScore, scores.For(direction))
		if !passed {
			continue
		}
		// Strict > keeps the first-listed scenario on ties.
		if best == nil || score > bestScore {
			best = &e.scenarios[i]
			bestScore = score
		}
	}

	if best == nil {
		decision.Reason = ReasonNoScenarioPassed
		return decision
	}

	decision.ShouldEntry = true
	decision.ScenarioName = best.Name
	decision.Confidence = bestScore
	decision.Reason = fmt.Sprintf("scenario %s passed with score %.2f", best.Name, bestScore)
	decision.ShouldCall = direction == DirectionCall
	decision.ShouldPut = direction == DirectionPut

	e.logger.Debug().
		Str("scenario", best.Name).
		Float64("score", bestScore).
		Str("direction", string(direction)).
		Msg("Scenario selected")

	return decision
}

// scoreScenario applies the quality gate and, when present, the per-category
// minimums. The scenario score is binary-gated: qualityScore on pass, 0 on
// failure, never a sum of category margins.
func (e *Evaluator) scoreScenario(s *Scenario, qualityScore float64, categoryScores map[string]int) (float64, bool) {
	minQuality := e.defaultMinQuality
	if s.MinQualityScore != nil {
		minQuality = *s.MinQualityScore
	}
	if qualityScore < minQuality {
		return 0, false
	}

	for category, minimum := range s.CategoryMinimums {
		if categoryScores[category] < minimum {
			return 0, false
		}
	}

	return qualityScore, true
}
