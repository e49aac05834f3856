package regime

import (
	"fmt"
	"strings"

	"options-scalper-bot/internal/indicator"
)

// CheckEntryFilter is the stricter gate that admits a scenario evaluation
// at all. Candle height, volume surge and body ratio must all clear their
// thresholds; the reason enumerates exactly which ones were missed.
func (c *Classifier) CheckEntryFilter(analysis indicator.CandleAnalysis, snapshot *indicator.Snapshot) EntryFilterResult {
	result := EntryFilterResult{
		CandleHeight: sanitizeValue(analysis.CandleHeight),
		BodyRatio:    sanitizeValue(analysis.BodyRatio),
	}
	if snapshot != nil {
		result.VolumeMultiplier = sanitizeValue(snapshot.VolumeSurgeMultiplier)
	}

	var missed []string
	if result.CandleHeight < c.filterCfg.MinCandleHeight {
		missed = append(missed, fmt.Sprintf("candle height %.2f < required %.2f", result.CandleHeight, c.filterCfg.MinCandleHeight))
	}
	if result.VolumeMultiplier < c.filterCfg.MinVolumeMultiplier {
		missed = append(missed, fmt.Sprintf("volume multiplier %.2fx < required %.2fx", result.VolumeMultiplier, c.filterCfg.MinVolumeMultiplier))
	}
	if result.BodyRatio < c.filterCfg.MinBodyRatio {
		missed = append(missed, fmt.Sprintf("body ratio %.2f < required %.2f", result.BodyRatio, c.filterCfg.MinBodyRatio))
	}

	if len(missed) > 0 {
		result.Reason = "entry filter failed: " + strings.Join(missed, "; ")
		return result
	}

	result.ConditionsMet = true
	result.Reason = "entry filter passed"
	return result
}
