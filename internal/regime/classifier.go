// Package regime classifies per-tick market conditions for the scalper:
// directional strength, volatility and candle quality are blended into an
// overall score, a flat-market veto rejects directionless tape, and a
// separate comprehensive gate decides tradability.
package regime

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/indicator"
)

// Nine dichotomous checks feed directional strength: EMA cross, RSI
// threshold and price-vs-VWAP on each of three timeframes.
const directionalChecks = 9

// Floor applied to sanitized denominators so ratios stay finite.
const denominatorFloor = 1e-9

// Classifier scores market conditions from an indicator snapshot and recent
// candles. Stateless; safe for concurrent use.
type Classifier struct {
	cfg       config.RegimeConfig
	filterCfg config.EntryFilterConfig
	logger    zerolog.Logger
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.RegimeConfig, filterCfg config.EntryFilterConfig, logger zerolog.Logger) *Classifier {
	return &Classifier{
		cfg:       cfg,
		filterCfg: filterCfg,
		logger:    logger.With().Str("component", "RegimeClassifier").Logger(),
	}
}

// Classify scores the current tick. It never panics: scoring failures
// degrade to a flat/unsuitable verdict so the tick loop keeps running.
func (c *Classifier) Classify(snapshot *indicator.Snapshot, candles []indicator.Candle) (regime MarketRegime) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Regime classification failed, degrading to flat")
			regime = flatRegime("classification error")
		}
	}()

	if snapshot == nil || len(candles) == 0 {
		return flatRegime("insufficient data")
	}

	analysis := indicator.AnalyzeCandles(candles, c.cfg.LookbackCandles)

	directional := c.safeScore(func() float64 { return c.directionalStrength(snapshot) })
	volatility := c.safeScore(func() float64 { return c.volatilityScore(snapshot, candles) })
	candleSize := c.safeScore(func() float64 { return c.candleSizeScore(analysis) })

	regime = MarketRegime{
		DirectionalStrength: directional,
		VolatilityScore:     volatility,
		CandleSizeScore:     candleSize,
		OverallScore: directionalWeight*directional +
			volatilityWeight*volatility +
			candleSizeWeight*candleSize,
	}

	regime.IsFlatMarket, regime.Reason = c.flatMarketVerdict(regime, analysis)
	if regime.IsFlatMarket {
		regime.IsSuitableForTrading = false
		return regime
	}

	regime.IsSuitableForTrading, regime.Reason = c.suitability(regime, snapshot)
	return regime
}

// safeScore runs one sub-computation, converting any panic or non-finite
// result into a conservative zero.
func (c *Classifier) safeScore(fn func() float64) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Interface("panic", r).Msg("Score computation failed, using 0")
			score = 0
		}
	}()
	return sanitizeScore(fn())
}

// directionalStrength counts bullish vs bearish slots across EMA, RSI and
// VWAP checks on all timeframes. A tie produces a low score, never a
// direction; direction is chosen downstream by the scenario evaluator.
func (c *Classifier) directionalStrength(snapshot *indicator.Snapshot) float64 {
	var bullish, bearish int

	for _, tf := range indicator.Timeframes {
		s := snapshot.SignalsFor(tf)
		if s.EMAFastAboveSlow {
			bullish++
		}
		if s.EMAFastBelowSlow {
			bearish++
		}
		if s.RSIAboveBullThreshold {
			bullish++
		}
		if s.RSIBelowBearThreshold {
			bearish++
		}
		if s.PriceAboveVWAP {
			bullish++
		}
		if s.PriceBelowVWAP {
			bearish++
		}
	}

	dominant := bullish
	if bearish > dominant {
		dominant = bearish
	}
	return clamp01(float64(dominant) / float64(directionalChecks))
}

// volatilityScore averages the ATR-over-minimum ratio and the recent
// high-low range over the configured minimum, each clamped to 1. Upstream
// indicator libraries can emit NaN/Inf on sparse data, so every input is
// sanitized before division.
func (c *Classifier) volatilityScore(snapshot *indicator.Snapshot, candles []indicator.Candle) float64 {
	atr := sanitizeValue(snapshot.SignalsFor(indicator.TimeframeShort).ATR)
	minATR := sanitizeDenominator(c.cfg.MinATR)
	atrRatio := clamp01(atr / minATR)

	lookback := c.cfg.LookbackCandles
	if lookback <= 0 || lookback > len(candles) {
		lookback = len(candles)
	}
	high := math.Inf(-1)
	low := math.Inf(1)
	for _, cd := range candles[len(candles)-lookback:] {
		if cd.High > high {
			high = cd.High
		}
		if cd.Low < low {
			low = cd.Low
		}
	}
	rangeRatio := clamp01(sanitizeValue(high-low) / sanitizeDenominator(c.cfg.MinRange))

	return (atrRatio + rangeRatio) / 2
}

// candleSizeScore relates the current body ratio to the configured minimum
// and applies a flat penalty per indecision classification.
func (c *Classifier) candleSizeScore(analysis indicator.CandleAnalysis) float64 {
	base := clamp01(sanitizeValue(analysis.BodyRatio) / sanitizeDenominator(c.cfg.MinBodyRatio))

	const indecisionPenalty = 0.2
	if analysis.IsDoji {
		base -= indecisionPenalty
	}
	if analysis.IsSpinningTop {
		base -= indecisionPenalty
	}
	if analysis.IsSmallBody {
		base -= indecisionPenalty
	}
	if base < 0 {
		return 0
	}
	return base
}

// flatMarketVerdict is a disjunction of independent red flags. Any single
// strong signal of flatness vetoes tradability regardless of other scores.
func (c *Classifier) flatMarketVerdict(r MarketRegime, analysis indicator.CandleAnalysis) (bool, string) {
	switch {
	case r.DirectionalStrength < c.cfg.MinDirectionalStrength:
		return true, fmt.Sprintf("directional strength %.2f below minimum %.2f", r.DirectionalStrength, c.cfg.MinDirectionalStrength)
	case r.VolatilityScore < c.cfg.LowVolatility:
		return true, fmt.Sprintf("volatility %.2f below low threshold %.2f", r.VolatilityScore, c.cfg.LowVolatility)
	case analysis.ConsecutiveDoji > c.cfg.MaxConsecutiveDoji:
		return true, fmt.Sprintf("%d consecutive doji exceeds maximum %d", analysis.ConsecutiveDoji, c.cfg.MaxConsecutiveDoji)
	case analysis.ConsecutiveSpinningTop > c.cfg.MaxConsecutiveSpinningTop:
		return true, fmt.Sprintf("%d consecutive spinning tops exceeds maximum %d", analysis.ConsecutiveSpinningTop, c.cfg.MaxConsecutiveSpinningTop)
	case analysis.ConsecutiveSmallCandles > c.cfg.MaxConsecutiveSmallCandles:
		return true, fmt.Sprintf("%d consecutive small candles exceeds maximum %d", analysis.ConsecutiveSmallCandles, c.cfg.MaxConsecutiveSmallCandles)
	case r.DirectionalStrength < c.cfg.VeryLowDirectionalStrength:
		return true, fmt.Sprintf("directional strength %.2f below very low threshold %.2f", r.DirectionalStrength, c.cfg.VeryLowDirectionalStrength)
	case r.VolatilityScore < c.cfg.VeryLowVolatility:
		return true, fmt.Sprintf("volatility %.2f below very low threshold %.2f", r.VolatilityScore, c.cfg.VeryLowVolatility)
	}
	return false, ""
}

// suitability layers the comprehensive gate on top of the flat-market veto.
// Both gates are kept independent on purpose; a market can fail either one
// on its own.
func (c *Classifier) suitability(r MarketRegime, snapshot *indicator.Snapshot) (bool, string) {
	if r.DirectionalStrength < c.cfg.MinDirectionalStrength {
		return false, fmt.Sprintf("directional strength %.2f below minimum %.2f", r.DirectionalStrength, c.cfg.MinDirectionalStrength)
	}

	surge := sanitizeValue(snapshot.VolumeSurgeMultiplier)
	if surge < c.cfg.MinVolumeSurgeMultiplier {
		return false, fmt.Sprintf("volume surge %.2fx below minimum %.2fx", surge, c.cfg.MinVolumeSurgeMultiplier)
	}

	ema := c.safeScore(func() float64 { return c.emaAlignmentScore(snapshot) })
	if ema < c.cfg.MinEMAAlignmentScore {
		return false, fmt.Sprintf("EMA alignment %.2f below minimum %.2f", ema, c.cfg.MinEMAAlignmentScore)
	}

	volume := c.safeScore(func() float64 { return c.volumeConsistencyScore(snapshot) })
	if volume < c.cfg.MinVolumeConsistencyScore {
		return false, fmt.Sprintf("volume consistency %.2f below minimum %.2f", volume, c.cfg.MinVolumeConsistencyScore)
	}

	priceAction := c.safeScore(func() float64 { return c.priceActionScore(snapshot) })
	if priceAction < c.cfg.MinPriceActionScore {
		return false, fmt.Sprintf("price action %.2f below minimum %.2f", priceAction, c.cfg.MinPriceActionScore)
	}

	if r.OverallScore < c.cfg.MinOverallScore {
		return false, fmt.Sprintf("overall score %.2f below minimum %.2f", r.OverallScore, c.cfg.MinOverallScore)
	}

	return true, "market suitable for trading"
}

// emaAlignmentScore is the dominant-side fraction of aligned EMA crosses
// across timeframes.
func (c *Classifier) emaAlignmentScore(snapshot *indicator.Snapshot) float64 {
	var above, below int
	for _, tf := range indicator.Timeframes {
		s := snapshot.SignalsFor(tf)
		if s.EMAFastAboveSlow {
			above++
		}
		if s.EMAFastBelowSlow {
			below++
		}
	}
	dominant := above
	if below > dominant {
		dominant = below
	}
	return clamp01(float64(dominant) / float64(len(indicator.Timeframes)))
}

// volumeConsistencyScore is the fraction of timeframes showing a volume
// surge, averaged with the clamped surge multiplier ratio.
func (c *Classifier) volumeConsistencyScore(snapshot *indicator.Snapshot) float64 {
	var surging int
	for _, tf := range indicator.Timeframes {
		if snapshot.SignalsFor(tf).VolumeSurge {
			surging++
		}
	}
	spread := float64(surging) / float64(len(indicator.Timeframes))
	strength := clamp01(sanitizeValue(snapshot.VolumeSurgeMultiplier) / sanitizeDenominator(c.cfg.MinVolumeSurgeMultiplier))
	return clamp01((spread + strength) / 2)
}

// priceActionScore counts VWAP-side and breakout slots for the dominant
// direction across timeframes.
func (c *Classifier) priceActionScore(snapshot *indicator.Snapshot) float64 {
	var bullish, bearish int
	for _, tf := range indicator.Timeframes {
		s := snapshot.SignalsFor(tf)
		if s.PriceAboveVWAP {
			bullish++
		}
		if s.PriceBelowVWAP {
			bearish++
		}
		if s.PriceAboveResistance {
			bullish++
		}
		if s.PriceBelowSupport {
			bearish++
		}
	}
	dominant := bullish
	if bearish > dominant {
		dominant = bearish
	}
	return clamp01(float64(dominant) / float64(2*len(indicator.Timeframes)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sanitizeScore replaces non-finite score inputs with 0.
func sanitizeScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// sanitizeValue replaces NaN/Inf/negative numerator inputs with 0.
func sanitizeValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// sanitizeDenominator replaces unusable denominators with a small positive
// floor so divisions stay finite.
func sanitizeDenominator(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return denominatorFloor
	}
	return v
}
