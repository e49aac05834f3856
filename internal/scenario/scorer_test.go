package scenario

import (
	"context"
	"math"
	"testing"

	"options-scalper-bot/internal/indicator"
)

func almostEqualF(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreBullishSnapshot(t *testing.T) {
	signals := make(map[indicator.Timeframe]indicator.TimeframeSignals)
	for _, tf := range indicator.Timeframes {
		signals[tf] = indicator.TimeframeSignals{
			EMAFastAboveSlow:      true,
			RSIAboveBullThreshold: true,
			PriceAboveVWAP:        true,
			BullishPattern:        true,
			VolumeSurge:           true,
		}
	}
	snapshot := &indicator.Snapshot{
		Signals: signals,
		Future:  indicator.FutureSignal{AllTimeframesBullish: true},
	}

	quality, scores, direction, err := NewSnapshotScorer().Score(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if direction != DirectionCall {
		t.Fatalf("direction = %s, want CALL", direction)
	}
	if scores.Call[CategoryEMA] != 3 || scores.Call[CategoryMomentum] != 6 {
		t.Fatalf("call scores = %v", scores.Call)
	}
	if scores.Call[CategoryFutureAndVolume] != 3 || scores.Call[CategoryCandlestick] != 3 {
		t.Fatalf("call scores = %v", scores.Call)
	}
	// Every slot filled: quality saturates at 10.
	if !almostEqualF(quality, 10) {
		t.Fatalf("quality = %.2f, want 10", quality)
	}
}

func TestScoreBearishSnapshotPrefersPut(t *testing.T) {
	signals := make(map[indicator.Timeframe]indicator.TimeframeSignals)
	for _, tf := range indicator.Timeframes {
		signals[tf] = indicator.TimeframeSignals{
			EMAFastBelowSlow:      true,
			RSIBelowBearThreshold: true,
			PriceBelowVWAP:        true,
		}
	}
	snapshot := &indicator.Snapshot{
		Signals: signals,
		Future:  indicator.FutureSignal{AllTimeframesBearish: true},
	}

	quality, scores, direction, err := NewSnapshotScorer().Score(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if direction != DirectionPut {
		t.Fatalf("direction = %s, want PUT", direction)
	}
	if scores.Put[CategoryEMA] != 3 || scores.Put[CategoryFutureAndVolume] != 2 {
		t.Fatalf("put scores = %v", scores.Put)
	}
	// 3 ema + 2 future + 0 candles + 6 momentum = 11 of 15 slots.
	if !almostEqualF(quality, 11.0/15.0*10) {
		t.Fatalf("quality = %.4f", quality)
	}
}

func TestScoreNeutralSnapshotDefaultsToCall(t *testing.T) {
	snapshot := &indicator.Snapshot{}

	quality, _, direction, err := NewSnapshotScorer().Score(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if direction != DirectionCall {
		t.Fatalf("direction = %s, want CALL on a tie", direction)
	}
	if quality != 0 {
		t.Fatalf("quality = %.2f, want 0", quality)
	}
}
