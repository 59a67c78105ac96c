package episodic

import (
	"math"
	"time"
)

// DefaultDecayRate is the per-day importance multiplier.
const DefaultDecayRate = 0.95

// Decay returns the importance after exponential decay from createdAt to
// now: importance × rate^(age in days). Age is fractional; a non-positive
// age leaves the importance untouched. Pure function, no side effects.
func Decay(importance float64, createdAt, now time.Time, rate float64) float64 {
	days := now.Sub(createdAt).Hours() / 24
	if days <= 0 {
		return importance
	}
	return importance * math.Pow(rate, days)
}

// clampImportance keeps importance inside its [0,1] invariant.
func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
