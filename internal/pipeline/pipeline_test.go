package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-funnel-metrics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordsFunc func(ctx context.Context, q Query) ([]model.GenericRecord, error)

func (f recordsFunc) FetchRecords(ctx context.Context, q Query) ([]model.GenericRecord, error) {
	return f(ctx, q)
}

type ticketsFunc func(ctx context.Context, q Query) ([]model.GenericRecord, error)

func (f ticketsFunc) FetchTickets(ctx context.Context, q Query) ([]model.GenericRecord, error) {
	return f(ctx, q)
}

type paymentsFunc func(ctx context.Context, q Query) ([]model.PaymentTransaction, error)

func (f paymentsFunc) FetchPayments(ctx context.Context, q Query) ([]model.PaymentTransaction, error) {
	return f(ctx, q)
}

type feedbackFunc func(ctx context.Context, q Query) ([]model.Feedback, error)

func (f feedbackFunc) FetchFeedback(ctx context.Context, q Query) ([]model.Feedback, error) {
	return f(ctx, q)
}

type profilesFunc func(ctx context.Context) ([]model.ProfessionalProfile, error)

func (f profilesFunc) FetchProfiles(ctx context.Context) ([]model.ProfessionalProfile, error) {
	return f(ctx)
}

type trafficFunc func(ctx context.Context, q Query) (model.VisitorStats, error)

func (f trafficFunc) FetchVisitors(ctx context.Context, q Query) (model.VisitorStats, error) {
	return f(ctx, q)
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
}

func recordDocs() []model.GenericRecord {
	return []model.GenericRecord{
		{"id": "r1", "status": "Pendente", "createdAt": testNow.Add(-72 * time.Hour).Format(time.RFC3339), "city": "Recife", "estado": "PE"},
		{"_id": "r2", "situacao": "matched", "created_at": testNow.Add(-24 * time.Hour), "profissionalId": "p1", "cidade": "São Paulo", "uf": "SP"},
		{"id": "r3", "status": "completed", "createdAt": testNow.Add(-10 * time.Hour).Unix(), "location": map[string]interface{}{"city": "Sao Paulo", "state": "SP"}},
		{"id": "r4", "status": "CANCELADO", "createdAt": testNow.Add(-5 * time.Hour)},
	}
}

func healthySources() Sources {
	return Sources{
		Records: recordsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
			return recordDocs(), nil
		}),
		Tickets: ticketsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
			return []model.GenericRecord{
				{"id": "t1", "status": "aberto", "categoria": "Reclamação", "createdAt": testNow.Add(-30 * time.Hour)},
			}, nil
		}),
		Payments: paymentsFunc(func(ctx context.Context, q Query) ([]model.PaymentTransaction, error) {
			return []model.PaymentTransaction{
				payment("ch_1", model.PaymentSucceeded, time.Hour),
				payment("ch_2", model.PaymentFailed, time.Hour),
			}, nil
		}),
		Feedback: feedbackFunc(func(ctx context.Context, q Query) ([]model.Feedback, error) {
			return []model.Feedback{{ID: "f1", Score: 9, CreatedAt: testNow.Add(-time.Hour)}}, nil
		}),
		Profiles: profilesFunc(func(ctx context.Context) ([]model.ProfessionalProfile, error) {
			return []model.ProfessionalProfile{{ID: "p1", Name: "Ana"}}, nil
		}),
		Traffic: trafficFunc(func(ctx context.Context, q Query) (model.VisitorStats, error) {
			return model.VisitorStats{Visitors: 40, From: q.Since, To: q.Until}, nil
		}),
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = fixedClock
	opts.Strict = true
	opts.BranchTimeout = 2 * time.Second
	opts.Retry.InitialDelay = time.Millisecond
	opts.Retry.MaxDelay = 5 * time.Millisecond
	return opts
}

func newTestOrchestrator(t *testing.T, sources Sources, opts Options) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(sources, opts)
	require.NoError(t, err)
	return o
}

func sourceStatus(report model.Report, name model.SourceName) model.SourceStatus {
	for _, s := range report.Sources {
		if s.Source == name {
			return s
		}
	}
	return model.SourceStatus{}
}

func TestOrchestrator_AllSourcesHealthy(t *testing.T) {
	o := newTestOrchestrator(t, healthySources(), testOptions())
	report := o.Run(context.Background(), ReportRequest{})

	assert.Equal(t, 30, report.WindowDays)
	assert.Equal(t, testNow, report.Timestamp)
	require.Len(t, report.Stages, 8)
	require.Len(t, report.Sources, 6)
	for _, s := range report.Sources {
		assert.True(t, s.Available, s.Source)
		assert.Equal(t, 1, s.Attempts, s.Source)
	}

	intake, _ := model.FunnelReport{Stages: report.Stages}.Stage(model.StageIntake)
	assert.Equal(t, 1, intake.Count)
	assert.Equal(t, 72.0, intake.AverageDwellHours)
	matching, _ := model.FunnelReport{Stages: report.Stages}.Stage(model.StageMatching)
	assert.Equal(t, 1, matching.Count)
	started, _ := model.FunnelReport{Stages: report.Stages}.Stage(model.StageServiceStarted)
	assert.Equal(t, 1, started.Count)
	assert.Equal(t, 1, report.NegativeBreakdown[1].Count)

	assert.Equal(t, 4, sourceStatus(report, model.SourceRecords).Records)
	assert.True(t, report.Traffic.Available)
	assert.Equal(t, int64(40), report.Traffic.Visitors)
	assert.Equal(t, floatPtr(10.0), report.Traffic.VisitorToIntakeRate)

	assert.True(t, report.Payments.Available)
	assert.Equal(t, 2, report.Payments.Total)
	assert.Equal(t, floatPtr(50.0), report.Payments.FailureRate)

	require.Len(t, report.AlertChecks, 6)
	for _, c := range report.AlertChecks {
		assert.True(t, c.Available, c.Category)
	}
	_, ok := findAlert(report.Alerts, model.AlertAgedTickets)
	assert.True(t, ok)
	_, ok = findAlert(report.Alerts, model.AlertPaymentFailures)
	assert.True(t, ok)
}

func TestOrchestrator_BranchWindows(t *testing.T) {
	var recordsQ, paymentsQ, feedbackQ Query
	sources := healthySources()
	sources.Records = recordsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
		recordsQ = q
		return nil, nil
	})
	sources.Payments = paymentsFunc(func(ctx context.Context, q Query) ([]model.PaymentTransaction, error) {
		paymentsQ = q
		return nil, nil
	})
	sources.Feedback = feedbackFunc(func(ctx context.Context, q Query) ([]model.Feedback, error) {
		feedbackQ = q
		return nil, nil
	})

	newTestOrchestrator(t, sources, testOptions()).Run(context.Background(), ReportRequest{WindowDays: 7})

	assert.Equal(t, testNow.AddDate(0, 0, -7), recordsQ.Since)
	assert.Equal(t, testNow, recordsQ.Until)
	assert.Equal(t, testNow.Add(-24*time.Hour), paymentsQ.Since)
	assert.Equal(t, testNow.AddDate(0, 0, -7), feedbackQ.Since)
}

func TestOrchestrator_FailedBranchDegradesOnlyItself(t *testing.T) {
	sources := healthySources()
	sources.Payments = paymentsFunc(func(ctx context.Context, q Query) ([]model.PaymentTransaction, error) {
		return nil, errors.New("processor said no")
	})
	logger, logs := observedLogger(t)
	opts := testOptions()
	opts.Logger = logger

	report := newTestOrchestrator(t, sources, opts).Run(context.Background(), ReportRequest{})

	pay := sourceStatus(report, model.SourcePayments)
	assert.False(t, pay.Available)
	assert.Equal(t, model.ReasonError, pay.MissingReason)
	assert.Equal(t, 1, pay.Attempts)
	assert.Contains(t, pay.Error, "processor said no")

	assert.False(t, report.Payments.Available)
	assert.Equal(t, model.ReasonError, report.Payments.MissingReason)
	check := findCheck(report.AlertChecks, model.AlertPaymentFailures)
	assert.False(t, check.Available)
	assert.Equal(t, model.ReasonError, check.MissingReason)

	for _, s := range report.Stages {
		assert.True(t, s.Available)
	}
	assert.True(t, findCheck(report.AlertChecks, model.AlertAgedTickets).Available)

	warned := logs.FilterMessage("orchestrator: branch unavailable").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "payments", warned[0].ContextMap()["source"])
}

func TestOrchestrator_RetriesTransientErrors(t *testing.T) {
	var calls int32
	sources := healthySources()
	sources.Traffic = trafficFunc(func(ctx context.Context, q Query) (model.VisitorStats, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return model.VisitorStats{}, errors.New("dial tcp: connection refused")
		}
		return model.VisitorStats{Visitors: 8}, nil
	})

	report := newTestOrchestrator(t, sources, testOptions()).Run(context.Background(), ReportRequest{})

	traffic := sourceStatus(report, model.SourceTraffic)
	assert.True(t, traffic.Available)
	assert.Equal(t, 2, traffic.Attempts)
	assert.Equal(t, int64(8), report.Traffic.Visitors)
}

func TestOrchestrator_SlowBranchTimesOut(t *testing.T) {
	sources := healthySources()
	release := make(chan struct{})
	defer close(release)
	// ignores ctx on purpose
	sources.Traffic = trafficFunc(func(ctx context.Context, q Query) (model.VisitorStats, error) {
		<-release
		return model.VisitorStats{Visitors: 1}, nil
	})
	opts := testOptions()
	opts.BranchTimeout = 50 * time.Millisecond

	start := time.Now()
	report := newTestOrchestrator(t, sources, opts).Run(context.Background(), ReportRequest{})
	assert.Less(t, time.Since(start), time.Second)

	traffic := sourceStatus(report, model.SourceTraffic)
	assert.False(t, traffic.Available)
	assert.Equal(t, model.ReasonTimeout, traffic.MissingReason)
	assert.False(t, report.Traffic.Available)
	assert.Nil(t, report.Traffic.VisitorToIntakeRate)

	assert.True(t, sourceStatus(report, model.SourceRecords).Available)
	assert.True(t, report.Payments.Available)
}

func TestOrchestrator_RecordsUnavailable(t *testing.T) {
	sources := healthySources()
	sources.Records = recordsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
		return nil, errors.New("replica set down")
	})

	report := newTestOrchestrator(t, sources, testOptions()).Run(context.Background(), ReportRequest{})

	require.Len(t, report.Stages, 8)
	for _, s := range report.Stages {
		assert.False(t, s.Available)
		assert.Equal(t, model.ReasonError, s.MissingReason)
	}
	assert.Nil(t, report.OverallConversionRate)
	assert.Empty(t, report.Bottlenecks)
	assert.False(t, findCheck(report.AlertChecks, model.AlertStuckIntake).Available)
	assert.False(t, findCheck(report.AlertChecks, model.AlertUnpaidAcceptance).Available)
	assert.True(t, findCheck(report.AlertChecks, model.AlertAgedTickets).Available)
	assert.True(t, report.Traffic.Available)
	assert.Nil(t, report.Traffic.VisitorToIntakeRate)
}

func TestOrchestrator_UnconfiguredSources(t *testing.T) {
	sources := Sources{Records: healthySources().Records}
	cache := newMapCache()
	opts := testOptions()
	opts.Cache = cache

	report := newTestOrchestrator(t, sources, opts).Run(context.Background(), ReportRequest{})

	require.Len(t, report.Sources, 6)
	assert.True(t, report.Sources[0].Available)
	for _, s := range report.Sources[1:] {
		assert.False(t, s.Available, s.Source)
		assert.Equal(t, model.ReasonNotConfigured, s.MissingReason, s.Source)
		assert.Zero(t, s.Attempts, s.Source)
	}
	assert.Equal(t, model.ReasonNotConfigured, report.Payments.MissingReason)
	assert.Equal(t, model.ReasonNotConfigured, report.Traffic.MissingReason)

	// not configured is not degraded, so the report is cached
	assert.Equal(t, 1, cache.sets)
}

func TestOrchestrator_ProviderPanicBecomesError(t *testing.T) {
	sources := healthySources()
	sources.Feedback = feedbackFunc(func(ctx context.Context, q Query) ([]model.Feedback, error) {
		panic("nil map")
	})

	report := newTestOrchestrator(t, sources, testOptions()).Run(context.Background(), ReportRequest{})

	fb := sourceStatus(report, model.SourceFeedback)
	assert.False(t, fb.Available)
	assert.Equal(t, model.ReasonError, fb.MissingReason)
	assert.Contains(t, fb.Error, "provider panicked")
}

func TestOrchestrator_Cache(t *testing.T) {
	var calls int32
	sources := healthySources()
	sources.Records = recordsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
		atomic.AddInt32(&calls, 1)
		return recordDocs(), nil
	})
	cache := newMapCache()
	opts := testOptions()
	opts.Cache = cache
	o := newTestOrchestrator(t, sources, opts)

	first := o.Run(context.Background(), ReportRequest{WindowDays: 30})
	second := o.Run(context.Background(), ReportRequest{WindowDays: 30})
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, first.Stages, second.Stages)
	assert.Equal(t, len(first.Alerts), len(second.Alerts))
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	require.NotEmpty(t, first.RunID)
	assert.Equal(t, first.RunID, second.RunID)

	o.Run(context.Background(), ReportRequest{WindowDays: 30, SkipCache: true})
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	o.Run(context.Background(), ReportRequest{WindowDays: 30, Filter: model.ReportFilter{City: "Recife"}})
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Len(t, cache.entries, 2)
}

func TestOrchestrator_DegradedReportIsNotCached(t *testing.T) {
	sources := healthySources()
	sources.Profiles = profilesFunc(func(ctx context.Context) ([]model.ProfessionalProfile, error) {
		return nil, errors.New("boom")
	})
	cache := newMapCache()
	opts := testOptions()
	opts.Cache = cache

	newTestOrchestrator(t, sources, opts).Run(context.Background(), ReportRequest{})
	assert.Zero(t, cache.sets)
}

func TestOrchestrator_LocationFilterAndDuplicates(t *testing.T) {
	sources := healthySources()
	sources.Records = recordsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
		docs := recordDocs()
		docs = append(docs, model.GenericRecord{"id": "r2", "status": "completed", "updatedAt": testNow.Add(-time.Hour), "city": "são paulo"})
		return docs, nil
	})

	report := newTestOrchestrator(t, sources, testOptions()).Run(context.Background(),
		ReportRequest{Filter: model.ReportFilter{City: "SAO PAULO"}})

	status := sourceStatus(report, model.SourceRecords)
	assert.Equal(t, 2, status.Records)
	assert.Equal(t, 1, status.Duplicates)

	// r2 keeps its newest copy, which is completed
	started, _ := model.FunnelReport{Stages: report.Stages}.Stage(model.StageServiceStarted)
	assert.Equal(t, 2, started.Count)
	assert.Equal(t, model.ReportFilter{City: "SAO PAULO"}, report.Filter)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestOrchestrator(t, healthySources(), testOptions()).Run(ctx, ReportRequest{})
	require.Len(t, report.Sources, 6)
	require.Len(t, report.Stages, 8)
	for _, s := range report.Sources {
		assert.False(t, s.Available, s.Source)
	}
}

func TestNewOrchestrator_RejectsInvalidThresholds(t *testing.T) {
	opts := testOptions()
	opts.Thresholds.PaymentFailureRatePct = 140

	_, err := NewOrchestrator(Sources{}, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidThresholds))
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	o, err := NewOrchestrator(Sources{}, Options{})
	require.NoError(t, err)
	opts := o.Options()
	assert.Equal(t, 30, opts.WindowDays)
	assert.Equal(t, 10*time.Second, opts.BranchTimeout)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, model.DefaultThresholds(), opts.Thresholds)
	assert.NotNil(t, opts.Logger)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "funnel:30::", CacheKey(30, model.ReportFilter{}))
	assert.Equal(t,
		CacheKey(7, model.ReportFilter{City: "São Paulo", State: "SP"}),
		CacheKey(7, model.ReportFilter{City: "sao paulo", State: "sp"}))
	assert.NotEqual(t, CacheKey(7, model.ReportFilter{}), CacheKey(30, model.ReportFilter{}))
}

func TestOrchestrator_ClassifiesEachRecordOnce(t *testing.T) {
	logger, logs := observedLogger(t)
	sources := healthySources()
	sources.Records = recordsFunc(func(ctx context.Context, q Query) ([]model.GenericRecord, error) {
		return []model.GenericRecord{
			{"id": "r1", "status": "aceito", "createdAt": testNow.Add(-80 * time.Hour)},
			{"id": "r2", "status": "xyzzy", "createdAt": testNow.Add(-80 * time.Hour)},
		}, nil
	})
	opts := testOptions()
	opts.Logger = logger

	report := newTestOrchestrator(t, sources, opts).Run(context.Background(), ReportRequest{})
	require.True(t, sourceStatus(report, model.SourceRecords).Available)

	ambiguous := logs.FilterMessage("classify: ambiguous token resolved").FilterField(zap.String("record_id", "r1"))
	assert.Equal(t, 1, ambiguous.Len())

	unknown := logs.FilterMessage("status: unknown token, using default").
		FilterField(zap.String("domain", string(model.DomainServiceRecord)))
	assert.Equal(t, 1, unknown.Len())
}
