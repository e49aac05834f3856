package regime

// Score weights for the blended overall score.
const (
	directionalWeight = 0.4
	volatilityWeight  = 0.3
	candleSizeWeight  = 0.3
)

// MarketRegime is the per-tick classification of market conditions.
type MarketRegime struct {
	DirectionalStrength  float64 `json:"directional_strength"` // 0-1
	VolatilityScore      float64 `json:"volatility_score"`     // 0-1
	CandleSizeScore      float64 `json:"candle_size_score"`    // 0-1
	OverallScore         float64 `json:"overall_score"`        // weighted blend
	IsFlatMarket         bool    `json:"is_flat_market"`
	IsSuitableForTrading bool    `json:"is_suitable_for_trading"`
	Reason               string  `json:"reason"`
}

// EntryFilterResult is the verdict of the stricter pre-scenario gate.
type EntryFilterResult struct {
	ConditionsMet    bool    `json:"conditions_met"`
	CandleHeight     float64 `json:"candle_height"`
	VolumeMultiplier float64 `json:"volume_multiplier"`
	BodyRatio        float64 `json:"body_ratio"`
	Reason           string  `json:"reason"`
}

// flatRegime is the conservative fallback when scoring cannot complete.
func flatRegime(reason string) MarketRegime {
	return MarketRegime{
		IsFlatMarket:         true,
		IsSuitableForTrading: false,
		Reason:               reason,
	}
}
