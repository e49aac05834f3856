package lifecycle

import (
	"fmt"
	"time"
)

var timeframeDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"10m": 10 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
}

// cooldownBlocked reports whether the post-exit cooldown still gates new
// entries. The gate holds until the candle of the configured timeframe that
// was open at exit time has closed; once it has, the state is cleared so the
// cooldown is not re-applied on the next call. Caller holds the write lock.
func (m *Manager) cooldownBlocked(now time.Time) (bool, string) {
	if !m.cooldownCfg.Enabled {
		return false, ""
	}
	if m.lastExitTime.IsZero() {
		return false, ""
	}
	if !m.isBlockingReason(m.lastExitReason) {
		return false, ""
	}

	duration, ok := timeframeDurations[m.cooldownCfg.Timeframe]
	if !ok {
		// Config validation should have rejected this; fall back to 5m
		// rather than blocking forever.
		m.logger.Warn().Str("timeframe", m.cooldownCfg.Timeframe).Msg("Unknown cooldown timeframe, using 5m")
		duration = 5 * time.Minute
	}

	candleClose := candleOpenAt(m.lastExitTime.In(m.location), duration).Add(duration)
	if !now.In(m.location).Before(candleClose) {
		m.lastExitReason = ""
		m.lastExitTime = time.Time{}
		return false, ""
	}

	return true, fmt.Sprintf("cooldown after %s exit until %s candle closes at %s",
		m.lastExitReason, m.cooldownCfg.Timeframe, candleClose.Format("15:04:05"))
}

func (m *Manager) isBlockingReason(reason ExitReason) bool {
	for _, r := range m.cooldownCfg.BlockingReasons {
		if ExitReason(r) == reason {
			return true
		}
	}
	return false
}

// candleOpenAt truncates t to the candle boundary in local wall-clock time.
// Truncating the wall-clock offset from local midnight keeps boundaries
// aligned for zones with fractional UTC offsets (IST is +05:30).
func candleOpenAt(t time.Time, interval time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	return midnight.Add(elapsed.Truncate(interval))
}
