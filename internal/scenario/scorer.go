package scenario

import (
	"context"

	"options-scalper-bot/internal/indicator"
)

// maxCategoryTotal is the highest reachable sum across all four categories:
// ema 3, futureAndVolume 3, candlestick 3, momentum 6.
const maxCategoryTotal = 15

// SnapshotScorer weighs snapshot signals into per-direction category scores
// and a composite quality score on a 0-10 scale.
type SnapshotScorer struct{}

// NewSnapshotScorer creates the default scorer.
func NewSnapshotScorer() *SnapshotScorer {
	return &SnapshotScorer{}
}

// Score computes both sides' category scores and returns the quality of the
// dominant side.
func (s *SnapshotScorer) Score(_ context.Context, snapshot *indicator.Snapshot) (float64, CategoryScoresByDirection, Direction, error) {
	call := map[string]int{
		CategoryEMA:             0,
		CategoryFutureAndVolume: 0,
		CategoryCandlestick:     0,
		CategoryMomentum:        0,
	}
	put := map[string]int{
		CategoryEMA:             0,
		CategoryFutureAndVolume: 0,
		CategoryCandlestick:     0,
		CategoryMomentum:        0,
	}

	for _, tf := range indicator.Timeframes {
		sig := snapshot.SignalsFor(tf)

		if sig.EMAFastAboveSlow {
			call[CategoryEMA]++
		}
		if sig.EMAFastBelowSlow {
			put[CategoryEMA]++
		}
		if sig.BullishPattern {
			call[CategoryCandlestick]++
		}
		if sig.BearishPattern {
			put[CategoryCandlestick]++
		}
		if sig.RSIAboveBullThreshold {
			call[CategoryMomentum]++
		}
		if sig.RSIBelowBearThreshold {
			put[CategoryMomentum]++
		}
		if sig.PriceAboveVWAP {
			call[CategoryMomentum]++
		}
		if sig.PriceBelowVWAP {
			put[CategoryMomentum]++
		}
	}

	if snapshot.Future.AllTimeframesBullish {
		call[CategoryFutureAndVolume] += 2
	}
	if snapshot.Future.AllTimeframesBearish {
		put[CategoryFutureAndVolume] += 2
	}
	if snapshot.SignalsFor(indicator.TimeframeShort).VolumeSurge {
		call[CategoryFutureAndVolume]++
		put[CategoryFutureAndVolume]++
	}

	scores := CategoryScoresByDirection{Call: call, Put: put}

	callTotal := categoryTotal(call)
	putTotal := categoryTotal(put)

	direction := DirectionCall
	total := callTotal
	if putTotal > callTotal {
		direction = DirectionPut
		total = putTotal
	}

	quality := float64(total) / maxCategoryTotal * 10
	return quality, scores, direction, nil
}

func categoryTotal(scores map[string]int) int {
	total := 0
	for _, v := range scores {
		total += v
	}
	return total
}
