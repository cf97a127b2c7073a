package pipeline

import (
	"time"

	"go-funnel-metrics/internal/model"
)

// DwellCalculator measures hours elapsed since a record's reference time
type DwellCalculator struct {
	now func() time.Time
}

// NewDwellCalculator creates a calculator; a nil clock means time.Now
func NewDwellCalculator(now func() time.Time) DwellCalculator {
	if now == nil {
		now = time.Now
	}
	return DwellCalculator{now: now}
}

// Now returns the calculator's current time
func (d DwellCalculator) Now() time.Time { return d.now() }

// HoursSince returns the hours elapsed since ts. A missing timestamp yields
// (0, false) so callers can tell "unknown" apart from "just created".
// Timestamps in the future count as zero hours.
func (d DwellCalculator) HoursSince(ts *time.Time) (float64, bool) {
	if ts == nil || ts.IsZero() {
		return 0, false
	}
	h := d.now().Sub(*ts).Hours()
	if h < 0 {
		return 0, true
	}
	return h, true
}

// ReferenceTime picks the best stage-entry approximation for a record:
// the last update when known, otherwise creation.
func ReferenceTime(rec model.RawRecord) *time.Time {
	if rec.UpdatedAt != nil && !rec.UpdatedAt.IsZero() {
		return rec.UpdatedAt
	}
	return rec.CreatedAt
}

// CumulativeDwell sums the average dwell of every stage up to and including
// stageIndex, i.e. the average time to reach the end of that stage.
func CumulativeDwell(stageIndex int, averages []float64) float64 {
	total := 0.0
	for i := 0; i <= stageIndex && i < len(averages); i++ {
		total += averages[i]
	}
	return total
}
