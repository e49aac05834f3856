package regime

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"options-scalper-bot/config"
	"options-scalper-bot/internal/indicator"
)

func testRegimeConfig() config.RegimeConfig {
	return config.RegimeConfig{
		MinDirectionalStrength:     0.35,
		VeryLowDirectionalStrength: 0.20,
		LowVolatility:              0.30,
		VeryLowVolatility:          0.15,
		MinATR:                     4.0,
		MinRange:                   10.0,
		MinBodyRatio:               0.5,
		MaxConsecutiveDoji:         2,
		MaxConsecutiveSpinningTop:  2,
		MaxConsecutiveSmallCandles: 3,
		MinVolumeSurgeMultiplier:   1.2,
		MinEMAAlignmentScore:       0.6,
		MinVolumeConsistencyScore:  0.5,
		MinPriceActionScore:        0.5,
		MinOverallScore:            0.5,
		LookbackCandles:            10,
	}
}

func testFilterConfig() config.EntryFilterConfig {
	return config.EntryFilterConfig{
		MinCandleHeight:     8.0,
		MinVolumeMultiplier: 2.0,
		MinBodyRatio:        0.6,
	}
}

func newTestClassifier() *Classifier {
	return NewClassifier(testRegimeConfig(), testFilterConfig(), zerolog.Nop())
}

// bullishSnapshot builds a snapshot where every directional check and every
// suitability input leans bullish.
func bullishSnapshot() *indicator.Snapshot {
	signals := make(map[indicator.Timeframe]indicator.TimeframeSignals)
	for _, tf := range indicator.Timeframes {
		signals[tf] = indicator.TimeframeSignals{
			EMAFastAboveSlow:      true,
			RSIAboveBullThreshold: true,
			PriceAboveVWAP:        true,
			VolumeSurge:           true,
			PriceAboveResistance:  true,
			ATR:                   6.0,
		}
	}
	return &indicator.Snapshot{
		Symbol:                "NIFTY",
		Timestamp:             time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Signals:               signals,
		VolumeSurgeMultiplier: 2.0,
		Future:                indicator.FutureSignal{AllTimeframesBullish: true},
	}
}

// trendingCandles produces n candles with large decisive bodies.
func trendingCandles(n int) []indicator.Candle {
	candles := make([]indicator.Candle, n)
	for i := range candles {
		open := 24400.0 + float64(i)*10
		candles[i] = indicator.Candle{
			Open:  open,
			Close: open + 12,
			High:  open + 14,
			Low:   open - 2,
		}
	}
	return candles
}

func dojiCandle(level float64) indicator.Candle {
	return indicator.Candle{
		Open:  level,
		Close: level,
		High:  level + 7,
		Low:   level - 7,
	}
}

func TestClassifyInsufficientData(t *testing.T) {
	c := newTestClassifier()

	regime := c.Classify(nil, trendingCandles(10))
	if !regime.IsFlatMarket || regime.IsSuitableForTrading {
		t.Fatalf("nil snapshot: regime = %+v, want flat and unsuitable", regime)
	}
	if regime.Reason != "insufficient data" {
		t.Fatalf("reason = %q", regime.Reason)
	}

	regime = c.Classify(bullishSnapshot(), nil)
	if !regime.IsFlatMarket {
		t.Fatal("empty candles must classify as flat")
	}
}

func TestClassifyStrongTrendIsSuitable(t *testing.T) {
	c := newTestClassifier()

	regime := c.Classify(bullishSnapshot(), trendingCandles(10))
	if regime.IsFlatMarket {
		t.Fatalf("strong trend flagged flat: %s", regime.Reason)
	}
	if !regime.IsSuitableForTrading {
		t.Fatalf("strong trend unsuitable: %s", regime.Reason)
	}
	if !almostEqual(regime.DirectionalStrength, 1.0) {
		t.Errorf("directional strength = %.2f, want 1.0", regime.DirectionalStrength)
	}
	if !almostEqual(regime.OverallScore, 1.0) {
		t.Errorf("overall score = %.2f, want 1.0", regime.OverallScore)
	}
}

func TestFlatMarketVetoDominatesHealthyScores(t *testing.T) {
	c := newTestClassifier()

	// Directional and volatility scores stay healthy, but a three-doji
	// streak alone must veto tradability.
	candles := trendingCandles(7)
	for i := 0; i < 3; i++ {
		candles = append(candles, dojiCandle(24480))
	}

	regime := c.Classify(bullishSnapshot(), candles)
	if !regime.IsFlatMarket {
		t.Fatal("doji streak did not veto")
	}
	if regime.IsSuitableForTrading {
		t.Fatal("flat market classified as suitable")
	}
	if !strings.Contains(regime.Reason, "consecutive doji") {
		t.Fatalf("reason = %q, want consecutive doji veto", regime.Reason)
	}
}

func TestDirectionalTieScoresLow(t *testing.T) {
	c := newTestClassifier()

	signals := map[indicator.Timeframe]indicator.TimeframeSignals{
		indicator.TimeframeShort: {
			EMAFastAboveSlow: true, RSIAboveBullThreshold: true, PriceAboveVWAP: true, ATR: 6.0,
		},
		indicator.TimeframeMedium: {
			EMAFastBelowSlow: true, RSIBelowBearThreshold: true, PriceBelowVWAP: true, ATR: 6.0,
		},
		indicator.TimeframeLong: {ATR: 6.0},
	}
	snapshot := &indicator.Snapshot{Signals: signals, VolumeSurgeMultiplier: 2.0}

	regime := c.Classify(snapshot, trendingCandles(10))
	if !almostEqual(regime.DirectionalStrength, 3.0/9.0) {
		t.Fatalf("directional strength = %.3f, want 0.333", regime.DirectionalStrength)
	}
	if !regime.IsFlatMarket || !strings.Contains(regime.Reason, "directional strength") {
		t.Fatalf("tied tape must be flat on directional strength, got %+v", regime)
	}
}

func TestVolatilityScoreSanitizesBadInputs(t *testing.T) {
	c := newTestClassifier()

	snapshot := bullishSnapshot()
	short := snapshot.Signals[indicator.TimeframeShort]
	short.ATR = math.NaN()
	snapshot.Signals[indicator.TimeframeShort] = short

	// Narrow candles: overall range 2 points against a 10 point minimum.
	candles := make([]indicator.Candle, 10)
	for i := range candles {
		candles[i] = indicator.Candle{Open: 24500, Close: 24501.5, High: 24501.8, Low: 24499.8}
	}

	regime := c.Classify(snapshot, candles)
	if math.IsNaN(regime.VolatilityScore) || math.IsInf(regime.VolatilityScore, 0) {
		t.Fatalf("volatility score not finite: %v", regime.VolatilityScore)
	}
	if !regime.IsFlatMarket || !strings.Contains(regime.Reason, "volatility") {
		t.Fatalf("low volatility must be flat, got %+v", regime)
	}
}

func TestCandleSizePenaltiesFloorAtZero(t *testing.T) {
	c := newTestClassifier()

	analysis := indicator.CandleAnalysis{
		BodyRatio:     0.25,
		IsDoji:        true,
		IsSpinningTop: true,
		IsSmallBody:   true,
	}
	if got := c.candleSizeScore(analysis); got != 0 {
		t.Fatalf("candle size score = %.2f, want floored 0", got)
	}

	analysis = indicator.CandleAnalysis{BodyRatio: 0.4, IsSmallBody: true}
	// base 0.8 minus one 0.2 penalty
	if got := c.candleSizeScore(analysis); !almostEqual(got, 0.6) {
		t.Fatalf("candle size score = %.2f, want 0.6", got)
	}
}

func TestSuitabilityRequiresVolumeSurge(t *testing.T) {
	c := newTestClassifier()

	snapshot := bullishSnapshot()
	snapshot.VolumeSurgeMultiplier = 1.0

	regime := c.Classify(snapshot, trendingCandles(10))
	if regime.IsFlatMarket {
		t.Fatalf("weak volume alone must not flag flat: %s", regime.Reason)
	}
	if regime.IsSuitableForTrading {
		t.Fatal("weak volume surge passed the suitability gate")
	}
	if !strings.Contains(regime.Reason, "volume surge") {
		t.Fatalf("reason = %q, want volume surge gate", regime.Reason)
	}
}

func TestCheckEntryFilterEnumeratesMissedThresholds(t *testing.T) {
	c := newTestClassifier()

	analysis := indicator.CandleAnalysis{CandleHeight: 5.0, BodyRatio: 0.4}
	snapshot := &indicator.Snapshot{VolumeSurgeMultiplier: 1.0}

	result := c.CheckEntryFilter(analysis, snapshot)
	if result.ConditionsMet {
		t.Fatal("filter passed with every threshold missed")
	}
	for _, fragment := range []string{"candle height", "volume multiplier", "body ratio"} {
		if !strings.Contains(result.Reason, fragment) {
			t.Errorf("reason %q missing %q", result.Reason, fragment)
		}
	}
}

func TestCheckEntryFilterPasses(t *testing.T) {
	c := newTestClassifier()

	analysis := indicator.CandleAnalysis{CandleHeight: 12.0, BodyRatio: 0.7}
	snapshot := &indicator.Snapshot{VolumeSurgeMultiplier: 2.4}

	result := c.CheckEntryFilter(analysis, snapshot)
	if !result.ConditionsMet {
		t.Fatalf("filter rejected healthy inputs: %s", result.Reason)
	}
	if result.Reason != "entry filter passed" {
		t.Fatalf("reason = %q", result.Reason)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
