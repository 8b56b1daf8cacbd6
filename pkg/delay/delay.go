// Package delay turns delay steps into either a short in-process wait or a
// persisted scheduled resume.
package delay

import (
	"math"
	"time"

	"github.com/dukex/autoflow/pkg/models"
)

const (
	// SuspendThreshold is the shortest delay that suspends a non-test run.
	SuspendThreshold = time.Minute

	// MaxInlineWait caps how long a run blocks in-process on a delay step.
	MaxInlineWait = 5 * time.Second
)

var unitMs = map[models.DelayType]float64{
	models.DelayTypeMinutes: 60_000,
	models.DelayTypeHours:   3_600_000,
	models.DelayTypeDays:    86_400_000,
	models.DelayTypeWeeks:   604_800_000,
}

// DelayMs returns the delay in milliseconds. Unknown or empty types count as minutes.
func DelayMs(delayType models.DelayType, value float64) float64 {
	factor, ok := unitMs[delayType]
	if !ok {
		factor = unitMs[models.DelayTypeMinutes]
	}

	return value * factor
}

// DelayDuration is DelayMs as a time.Duration, rounded to the millisecond.
// Negative and non-finite values yield zero.
func DelayDuration(delayType models.DelayType, value float64) time.Duration {
	ms := DelayMs(delayType, value)
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}

	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(math.Round(ms)) * time.Millisecond
}
