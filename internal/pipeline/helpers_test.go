package pipeline

import (
	"testing"
	"time"

	"go-funnel-metrics/internal/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func hoursAgo(h float64) *time.Time {
	t := testNow.Add(-time.Duration(h * float64(time.Hour)))
	return &t
}

func observedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func record(id, status string, created *time.Time) model.RawRecord {
	return model.RawRecord{ID: id, Status: status, CreatedAt: created}
}

func newTestAggregator(workers int) *FunnelAggregator {
	return NewFunnelAggregator(
		NewStatusNormalizer(nil),
		NewStageClassifier(nil, true),
		NewDwellCalculator(fixedClock),
		workers,
	)
}

func floatPtr(v float64) *float64 { return &v }
