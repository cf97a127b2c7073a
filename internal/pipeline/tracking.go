package pipeline

import (
	"context"
	"errors"
	"time"

	"go-funnel-metrics/internal/model"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrSourceUnavailable wraps every provider failure surfaced by a branch
	ErrSourceUnavailable = eris.New("source unavailable")
	// ErrSourceNotConfigured marks a branch with no provider wired
	ErrSourceNotConfigured = eris.New("source not configured")
)

// FailureReason maps a branch error to its missing-reason string
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrSourceNotConfigured):
		return model.ReasonNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonTimeout
	default:
		return model.ReasonError
	}
}

// SucceededStatus describes a branch that returned data
func SucceededStatus(source model.SourceName, records, attempts int, duration time.Duration) model.SourceStatus {
	return model.SourceStatus{
		Source:    source,
		Available: true,
		Records:   records,
		Attempts:  attempts,
		Duration:  duration,
	}
}

// FailedStatus describes a branch that degraded
func FailedStatus(source model.SourceName, err error, attempts int, duration time.Duration) model.SourceStatus {
	status := model.SourceStatus{
		Source:        source,
		Available:     false,
		Attempts:      attempts,
		Duration:      duration,
		MissingReason: FailureReason(err),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// SourceTracker collects branch outcomes once every branch has resolved.
// It is filled from a single goroutine after the fan-in.
type SourceTracker struct {
	statuses map[model.SourceName]model.SourceStatus
	logger   *zap.Logger
}

// NewSourceTracker creates an empty tracker
func NewSourceTracker(logger *zap.Logger) *SourceTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SourceTracker{
		statuses: make(map[model.SourceName]model.SourceStatus),
		logger:   logger,
	}
}

// Add records a branch outcome, logging unavailable ones
func (t *SourceTracker) Add(status model.SourceStatus) {
	if !status.Available {
		t.logger.Warn("orchestrator: branch unavailable",
			zap.String("source", string(status.Source)),
			zap.String("reason", status.MissingReason),
			zap.Int("attempts", status.Attempts),
			zap.Duration("duration", status.Duration),
			zap.String("error", status.Error),
		)
	}
	t.statuses[status.Source] = status
}

// Statuses returns one entry per known source in canonical order. Sources
// no branch reported are listed as not configured.
func (t *SourceTracker) Statuses() []model.SourceStatus {
	out := make([]model.SourceStatus, 0, len(model.SourceNames()))
	for _, name := range model.SourceNames() {
		status, ok := t.statuses[name]
		if !ok {
			status = model.SourceStatus{Source: name, MissingReason: model.ReasonNotConfigured}
		}
		out = append(out, status)
	}
	return out
}

// Missing returns the reason for every unavailable source
func (t *SourceTracker) Missing() map[model.SourceName]string {
	missing := make(map[model.SourceName]string)
	for _, status := range t.Statuses() {
		if !status.Available {
			missing[status.Source] = status.MissingReason
		}
	}
	return missing
}

// Failures returns the statuses of unavailable sources
func (t *SourceTracker) Failures() []model.SourceStatus {
	var failed []model.SourceStatus
	for _, status := range t.Statuses() {
		if !status.Available {
			failed = append(failed, status)
		}
	}
	return failed
}
