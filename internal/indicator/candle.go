package indicator

import "time"

// Candle is a single OHLCV bar of the underlying index.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Height returns the full high-low range of the candle.
func (c Candle) Height() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// BodyRatio returns body/range, 0 for a zero-range candle.
func (c Candle) BodyRatio() float64 {
	r := c.Height()
	if r <= 0 {
		return 0
	}
	return c.Body() / r
}

// IsBullish reports whether the candle closed above its open.
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// Tick is a single price update of the underlying index.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
