package scenario

// Direction is the side of an options entry. Both sides are long premium.
type Direction string

const (
	DirectionCall Direction = "CALL"
	DirectionPut  Direction = "PUT"
)

// Score categories referenced by scenario requirements. Category values are
// direction-weighted: the same scenario checks different numbers for a CALL
// evaluation than for a PUT evaluation.
const (
	CategoryEMA             = "ema"
	CategoryFutureAndVolume = "futureAndVolume"
	CategoryCandlestick     = "candlestick"
	CategoryMomentum        = "momentum"
)

// ReasonNoScenarioPassed marks a decision where every scenario was rejected.
const ReasonNoScenarioPassed = "NO_SCENARIO_PASSED"

// Scenario is one configured entry scenario with typed, load-validated
// requirements. A nil category minimum means the category is not required.
type Scenario struct {
	Name            string
	MinQualityScore *float64
	CategoryMinimums map[string]int
}

// EntryDecision is the evaluator's per-tick output. Built once, immutable
// after construction.
type EntryDecision struct {
	ShouldEntry     bool           `json:"should_entry"`
	ShouldCall      bool           `json:"should_call"`
	ShouldPut       bool           `json:"should_put"`
	ScenarioName    string         `json:"scenario_name,omitempty"`
	Confidence      float64        `json:"confidence"`
	QualityScore    float64        `json:"quality_score"`
	CategoryScores  map[string]int `json:"category_scores,omitempty"`
	MarketDirection Direction      `json:"market_direction,omitempty"`
	Reason          string         `json:"reason"`
}

// CategoryScoresByDirection carries the externally pre-weighted category
// scores for both sides.
type CategoryScoresByDirection struct {
	Call map[string]int `json:"call"`
	Put  map[string]int `json:"put"`
}

// For returns the score map for a direction.
func (c CategoryScoresByDirection) For(d Direction) map[string]int {
	if d == DirectionPut {
		return c.Put
	}
	return c.Call
}
