package indicator

// Candle classification thresholds. Body/range below the doji ratio marks a
// doji; spinning tops have a small body with wicks on both sides.
const (
	dojiBodyRatio        = 0.1
	spinningTopBodyRatio = 0.3
	smallBodyRatio       = 0.35
	longBodyRatio        = 0.7
)

// CandleAnalysis describes the latest candle plus indecision streaks over a
// lookback window. Derived fresh each tick, never persisted.
type CandleAnalysis struct {
	CandleHeight            float64 `json:"candle_height"`
	BodyRatio               float64 `json:"body_ratio"`
	IsDoji                  bool    `json:"is_doji"`
	IsSpinningTop           bool    `json:"is_spinning_top"`
	IsSmallBody             bool    `json:"is_small_body"`
	IsLongBody              bool    `json:"is_long_body"`
	ConsecutiveDoji         int     `json:"consecutive_doji"`
	ConsecutiveSpinningTop  int     `json:"consecutive_spinning_top"`
	ConsecutiveSmallCandles int     `json:"consecutive_small_candles"`
}

// AnalyzeCandles classifies the most recent candle and counts indecision
// streaks ending at it. lookback bounds how far back streaks are counted.
func AnalyzeCandles(candles []Candle, lookback int) CandleAnalysis {
	if len(candles) == 0 {
		return CandleAnalysis{}
	}

	last := candles[len(candles)-1]
	analysis := CandleAnalysis{
		CandleHeight:  last.Height(),
		BodyRatio:     last.BodyRatio(),
		IsDoji:        isDoji(last),
		IsSpinningTop: isSpinningTop(last),
		IsSmallBody:   isSmallBody(last),
		IsLongBody:    last.BodyRatio() >= longBodyRatio,
	}

	start := len(candles) - lookback
	if lookback <= 0 || start < 0 {
		start = 0
	}

	// Streaks run backwards from the latest candle and stop at the first
	// candle that breaks them.
	for i := len(candles) - 1; i >= start; i-- {
		if !isDoji(candles[i]) {
			break
		}
		analysis.ConsecutiveDoji++
	}
	for i := len(candles) - 1; i >= start; i-- {
		if !isSpinningTop(candles[i]) {
			break
		}
		analysis.ConsecutiveSpinningTop++
	}
	for i := len(candles) - 1; i >= start; i-- {
		if !isSmallBody(candles[i]) {
			break
		}
		analysis.ConsecutiveSmallCandles++
	}

	return analysis
}

func isDoji(c Candle) bool {
	return c.Height() > 0 && c.BodyRatio() <= dojiBodyRatio
}

func isSpinningTop(c Candle) bool {
	if c.Height() <= 0 {
		return false
	}
	if c.BodyRatio() > spinningTopBodyRatio {
		return false
	}
	upper := c.High - max(c.Open, c.Close)
	lower := min(c.Open, c.Close) - c.Low
	// Wicks on both sides, each at least as tall as the body
	return upper >= c.Body() && lower >= c.Body()
}

func isSmallBody(c Candle) bool {
	return c.Height() <= 0 || c.BodyRatio() < smallBodyRatio
}
