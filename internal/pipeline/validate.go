package pipeline

import (
	"go-funnel-metrics/internal/model"

	"github.com/rotisserie/eris"
)

// MaxWindowDays bounds the reporting window a caller may request
const MaxWindowDays = 365

var (
	// ErrInvalidThresholds is returned when a threshold config is rejected
	ErrInvalidThresholds = eris.New("invalid thresholds")
	// ErrInvalidRequest is returned for a malformed report request
	ErrInvalidRequest = eris.New("invalid report request")
)

// ValidateThresholds checks a threshold config before it reaches the evaluator
func ValidateThresholds(t model.ThresholdConfig) error {
	if err := t.Validate(); err != nil {
		return eris.Wrap(ErrInvalidThresholds, err.Error())
	}
	return nil
}

// ValidateRequest checks the caller-supplied part of a report request
func ValidateRequest(req ReportRequest) error {
	if req.WindowDays < 0 || req.WindowDays > MaxWindowDays {
		return eris.Wrapf(ErrInvalidRequest, "windowDays must be between 0 and %d, got %d", MaxWindowDays, req.WindowDays)
	}
	if len(req.Filter.City) > 120 || len(req.Filter.State) > 120 {
		return eris.Wrap(ErrInvalidRequest, "location filter too long")
	}
	return nil
}

// DeduplicateRecords collapses records sharing a non-empty id, keeping the
// most recently updated copy. Order of first appearance is preserved.
// Returns the kept records and how many were dropped.
func DeduplicateRecords(records []model.RawRecord) ([]model.RawRecord, int) {
	index := make(map[string]int, len(records))
	kept := make([]model.RawRecord, 0, len(records))
	dropped := 0

	for _, rec := range records {
		if rec.ID == "" {
			kept = append(kept, rec)
			continue
		}
		pos, seen := index[rec.ID]
		if !seen {
			index[rec.ID] = len(kept)
			kept = append(kept, rec)
			continue
		}
		dropped++
		if newer(rec, kept[pos]) {
			kept[pos] = rec
		}
	}
	return kept, dropped
}

// newer reports whether a was touched after b; unknown timestamps lose
func newer(a, b model.RawRecord) bool {
	ta, tb := ReferenceTime(a), ReferenceTime(b)
	if ta == nil {
		return false
	}
	if tb == nil {
		return true
	}
	return ta.After(*tb)
}
