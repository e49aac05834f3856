package indicator

import "time"

// Timeframe identifies one of the three analysis horizons.
type Timeframe string

const (
	TimeframeShort  Timeframe = "short"
	TimeframeMedium Timeframe = "medium"
	TimeframeLong   Timeframe = "long"
)

// Timeframes lists all horizons in ascending order.
var Timeframes = []Timeframe{TimeframeShort, TimeframeMedium, TimeframeLong}

// TimeframeSignals holds the per-timeframe boolean signals produced by the
// indicator collaborator.
type TimeframeSignals struct {
	EMAFastAboveSlow      bool    `json:"ema_fast_above_slow"`
	EMAFastBelowSlow      bool    `json:"ema_fast_below_slow"`
	RSIAboveBullThreshold bool    `json:"rsi_above_bull_threshold"`
	RSIBelowBearThreshold bool    `json:"rsi_below_bear_threshold"`
	PriceAboveVWAP        bool    `json:"price_above_vwap"`
	PriceBelowVWAP        bool    `json:"price_below_vwap"`
	VolumeSurge           bool    `json:"volume_surge"`
	BullishPattern        bool    `json:"bullish_pattern"`
	BearishPattern        bool    `json:"bearish_pattern"`
	PriceAboveResistance  bool    `json:"price_above_resistance"`
	PriceBelowSupport     bool    `json:"price_below_support"`
	ATR                   float64 `json:"atr"`
}

// FutureSignal is the composite multi-timeframe summary.
type FutureSignal struct {
	AllTimeframesBullish bool `json:"all_timeframes_bullish"`
	AllTimeframesBearish bool `json:"all_timeframes_bearish"`
}

// Snapshot is the per-tick indicator bundle consumed by the decision core.
// It is produced once per tick by the indicator collaborator and is
// read-only inside the pipeline.
type Snapshot struct {
	Symbol                string                         `json:"symbol"`
	Timestamp             time.Time                      `json:"timestamp"`
	Signals               map[Timeframe]TimeframeSignals `json:"signals"`
	VolumeSurgeMultiplier float64                        `json:"volume_surge_multiplier"`
	Future                FutureSignal                   `json:"future"`
}

// SignalsFor returns the signals for a timeframe, zero value when missing.
func (s *Snapshot) SignalsFor(tf Timeframe) TimeframeSignals {
	if s == nil || s.Signals == nil {
		return TimeframeSignals{}
	}
	return s.Signals[tf]
}
