package broker

// PercentSizer derives protective distances from the reference index price:
// the stop is a fixed percentage of it, the target a multiple of the stop.
// It stands in for a volatility-driven sizing service behind the same
// interface.
type PercentSizer struct {
	StopPercent float64 // of reference index price
	Reward      float64 // target points per stop point
}

// StopLossPoints returns the stop distance in price units.
func (s PercentSizer) StopLossPoints(referencePrice float64) float64 {
	if referencePrice <= 0 {
		return 0
	}
	return referencePrice * s.StopPercent / 100
}

// TargetPoints returns the target distance for a stop distance.
func (s PercentSizer) TargetPoints(stopLossPoints float64) float64 {
	if stopLossPoints <= 0 {
		return 0
	}
	return stopLossPoints * s.Reward
}
