package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-funnel-metrics/internal/model"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Query bounds a provider fetch to a time window
type Query struct {
	Since time.Time
	Until time.Time
}

// RecordSource supplies marketplace jobs and service requests
type RecordSource interface {
	FetchRecords(ctx context.Context, q Query) ([]model.GenericRecord, error)
}

// TicketSource supplies support tickets
type TicketSource interface {
	FetchTickets(ctx context.Context, q Query) ([]model.GenericRecord, error)
}

// PaymentSource supplies payment processor transactions
type PaymentSource interface {
	FetchPayments(ctx context.Context, q Query) ([]model.PaymentTransaction, error)
}

// FeedbackSource supplies customer ratings
type FeedbackSource interface {
	FetchFeedback(ctx context.Context, q Query) ([]model.Feedback, error)
}

// ProfileSource supplies professional profiles
type ProfileSource interface {
	FetchProfiles(ctx context.Context) ([]model.ProfessionalProfile, error)
}

// TrafficSource supplies web-analytics visitor counts
type TrafficSource interface {
	FetchVisitors(ctx context.Context, q Query) (model.VisitorStats, error)
}

// Sources are the data-provider collaborators. A nil source is reported as
// not configured.
type Sources struct {
	Records  RecordSource
	Tickets  TicketSource
	Payments PaymentSource
	Feedback FeedbackSource
	Profiles ProfileSource
	Traffic  TrafficSource
}

// Cache is the response cache owned by the orchestrator's caller
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Options configure an Orchestrator. Zero values take the defaults.
type Options struct {
	WindowDays    int
	BranchTimeout time.Duration
	CacheTTL      time.Duration
	Workers       int
	MaxParallel   int
	// Strict panics on invariant violations instead of logging them
	Strict     bool
	Thresholds model.ThresholdConfig
	Retry      model.RetryConfig
	Now        func() time.Time
	Logger     *zap.Logger
	Cache      Cache
}

// DefaultOptions returns the documented report defaults
func DefaultOptions() Options {
	return Options{
		WindowDays:    30,
		BranchTimeout: 10 * time.Second,
		CacheTTL:      5 * time.Minute,
		Workers:       4,
		Thresholds:    model.DefaultThresholds(),
		Retry:         model.DefaultRetryConfig(),
		Now:           time.Now,
	}
}

// ReportRequest is one caller invocation
type ReportRequest struct {
	WindowDays int
	Filter     model.ReportFilter
	SkipCache  bool
}

// Orchestrator fans out to every provider, feeds the results through the
// funnel and alert components and assembles the report.
type Orchestrator struct {
	sources    Sources
	opts       Options
	normalizer *StatusNormalizer
	classifier *StageClassifier
	retrier    *Retrier
	logger     *zap.Logger
}

// NewOrchestrator validates opts and creates an orchestrator
func NewOrchestrator(sources Sources, opts Options) (*Orchestrator, error) {
	def := DefaultOptions()
	if opts.WindowDays <= 0 {
		opts.WindowDays = def.WindowDays
	}
	if opts.BranchTimeout <= 0 {
		opts.BranchTimeout = def.BranchTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Thresholds == (model.ThresholdConfig{}) {
		opts.Thresholds = def.Thresholds
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := ValidateThresholds(opts.Thresholds); err != nil {
		return nil, err
	}

	return &Orchestrator{
		sources:    sources,
		opts:       opts,
		normalizer: NewStatusNormalizer(opts.Logger),
		classifier: NewStageClassifier(opts.Logger, opts.Strict),
		retrier:    NewRetrier(opts.Retry, opts.Logger),
		logger:     opts.Logger,
	}, nil
}

// Options returns the effective options
func (o *Orchestrator) Options() Options { return o.opts }

// CacheKey derives the response cache key for a request
func CacheKey(windowDays int, filter model.ReportFilter) string {
	return fmt.Sprintf("funnel:%d:%s:%s", windowDays, foldToken(filter.City), foldToken(filter.State))
}

type recordSet struct {
	records    []model.RawRecord
	duplicates int
}

// Run builds a full report. It never fails: unavailable providers show up
// as unavailable stages, alert checks and sub-metrics.
func (o *Orchestrator) Run(ctx context.Context, req ReportRequest) model.Report {
	if req.WindowDays <= 0 {
		req.WindowDays = o.opts.WindowDays
	}
	key := CacheKey(req.WindowDays, req.Filter)
	if report, ok := o.cached(ctx, key, req.SkipCache); ok {
		return report
	}

	now := o.opts.Now()
	dwell := NewDwellCalculator(func() time.Time { return now })
	th := o.opts.Thresholds
	window := Query{Since: now.AddDate(0, 0, -req.WindowDays), Until: now}
	paymentWindow := Query{Since: now.Add(-time.Duration(th.PaymentWindowHours * float64(time.Hour))), Until: now}
	feedbackWindow := Query{Since: now.AddDate(0, 0, -th.FeedbackWindowDays), Until: now}

	var (
		records  branchResult[recordSet]
		tickets  branchResult[[]model.SupportTicket]
		payments branchResult[[]model.PaymentTransaction]
		feedback branchResult[[]model.Feedback]
		profiles branchResult[[]model.ProfessionalProfile]
		traffic  branchResult[model.VisitorStats]
	)

	// branches never return an error; each one degrades into its own result
	g := new(errgroup.Group)
	if o.opts.MaxParallel > 0 {
		g.SetLimit(o.opts.MaxParallel)
	}
	g.Go(func() error {
		records = runBranch(ctx, o, model.SourceRecords, o.sources.Records != nil,
			func(rs recordSet) int { return len(rs.records) },
			func(ctx context.Context) (recordSet, error) {
				docs, err := o.sources.Records.FetchRecords(ctx, window)
				if err != nil {
					return recordSet{}, err
				}
				recs := ExtractRecords(CleanRecords(docs), string(model.SourceRecords))
				recs = FilterByLocation(recs, req.Filter)
				recs, dupes := DeduplicateRecords(recs)
				return recordSet{records: recs, duplicates: dupes}, nil
			})
		return nil
	})
	g.Go(func() error {
		tickets = runBranch(ctx, o, model.SourceTickets, o.sources.Tickets != nil,
			func(ts []model.SupportTicket) int { return len(ts) },
			func(ctx context.Context) ([]model.SupportTicket, error) {
				docs, err := o.sources.Tickets.FetchTickets(ctx, window)
				if err != nil {
					return nil, err
				}
				return ExtractTickets(CleanRecords(docs)), nil
			})
		return nil
	})
	g.Go(func() error {
		payments = runBranch(ctx, o, model.SourcePayments, o.sources.Payments != nil,
			func(ps []model.PaymentTransaction) int { return len(ps) },
			func(ctx context.Context) ([]model.PaymentTransaction, error) {
				return o.sources.Payments.FetchPayments(ctx, paymentWindow)
			})
		return nil
	})
	g.Go(func() error {
		feedback = runBranch(ctx, o, model.SourceFeedback, o.sources.Feedback != nil,
			func(fs []model.Feedback) int { return len(fs) },
			func(ctx context.Context) ([]model.Feedback, error) {
				return o.sources.Feedback.FetchFeedback(ctx, feedbackWindow)
			})
		return nil
	})
	g.Go(func() error {
		profiles = runBranch(ctx, o, model.SourceProfiles, o.sources.Profiles != nil,
			func(ps []model.ProfessionalProfile) int { return len(ps) },
			func(ctx context.Context) ([]model.ProfessionalProfile, error) {
				return o.sources.Profiles.FetchProfiles(ctx)
			})
		return nil
	})
	g.Go(func() error {
		traffic = runBranch(ctx, o, model.SourceTraffic, o.sources.Traffic != nil,
			func(v model.VisitorStats) int { return int(v.Visitors) },
			func(ctx context.Context) (model.VisitorStats, error) {
				return o.sources.Traffic.FetchVisitors(ctx, window)
			})
		return nil
	})
	_ = g.Wait()

	// fan-in: everything below runs on this goroutine only
	records.status.Duplicates = records.value.duplicates
	tracker := NewSourceTracker(o.logger)
	for _, status := range []model.SourceStatus{
		records.status, tickets.status, payments.status,
		feedback.status, profiles.status, traffic.status,
	} {
		tracker.Add(status)
	}

	var (
		funnel     model.FunnelReport
		classified []ClassifiedRecord
	)
	if records.status.Available {
		aggregator := NewFunnelAggregator(o.normalizer, o.classifier, dwell, o.opts.Workers)
		partition := aggregator.Partition(records.value.records)
		funnel = BuildFunnel(partition)
		classified = partition.Records()
		o.checkConservation(funnel, len(records.value.records))
	} else {
		funnel = UnavailableFunnel(records.status.MissingReason)
	}

	evaluator := NewAlertEvaluator(th, o.normalizer, o.classifier, dwell, o.logger)
	alerts, checks := evaluator.Evaluate(DataSources{
		Records:    records.value.records,
		Classified: classified,
		Tickets:    tickets.value,
		Payments:   payments.value,
		Feedback:   feedback.value,
		Profiles:   profiles.value,
		Missing:    tracker.Missing(),
	})

	report := model.Report{
		RunID:                 uuid.New().String(),
		WindowDays:            req.WindowDays,
		Filter:                req.Filter,
		Stages:                funnel.Stages,
		NegativeBreakdown:     funnel.NegativeBreakdown,
		OverallConversionRate: funnel.OverallConversionRate,
		Bottlenecks:           DetectBottlenecks(funnel, th.BottleneckThresholdHours),
		Alerts:                alerts,
		AlertChecks:           checks,
		Traffic:               trafficSummary(traffic, records),
		Payments:              paymentSummary(payments, now, th.PaymentWindowHours),
		Sources:               tracker.Statuses(),
		Timestamp:             now,
	}

	o.logger.Info("orchestrator: report built",
		zap.Int("window_days", req.WindowDays),
		zap.Int("records", len(records.value.records)),
		zap.Int("alerts", len(alerts)),
		zap.Int("unavailable_sources", len(tracker.Failures())),
	)

	if degraded(report.Sources) {
		return report
	}
	o.store(ctx, key, report)
	return report
}

// checkConservation asserts every record landed in exactly one bucket
func (o *Orchestrator) checkConservation(funnel model.FunnelReport, total int) {
	if funnel.TotalPositive+funnel.TotalNegative == total {
		return
	}
	msg := fmt.Sprintf("funnel lost records: %d positive + %d negative != %d input",
		funnel.TotalPositive, funnel.TotalNegative, total)
	if o.opts.Strict {
		panic(msg)
	}
	o.logger.Error("orchestrator: invariant violated", zap.String("detail", msg))
}

func (o *Orchestrator) cached(ctx context.Context, key string, skip bool) (model.Report, bool) {
	if o.opts.Cache == nil || skip {
		return model.Report{}, false
	}
	data, ok := o.opts.Cache.Get(ctx, key)
	if !ok {
		return model.Report{}, false
	}
	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		o.logger.Warn("orchestrator: discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return model.Report{}, false
	}
	o.logger.Debug("orchestrator: cache hit", zap.String("key", key), zap.String("run_id", report.RunID))
	report.Cached = true
	return report, true
}

func (o *Orchestrator) store(ctx context.Context, key string, report model.Report) {
	if o.opts.Cache == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		o.logger.Warn("orchestrator: report not cached", zap.Error(err))
		return
	}
	o.opts.Cache.Set(ctx, key, data, o.opts.CacheTTL)
}

// degraded reports whether any configured source failed. Such reports are
// not cached so the next call retries the provider.
func degraded(sources []model.SourceStatus) bool {
	for _, s := range sources {
		if !s.Available && s.MissingReason != model.ReasonNotConfigured {
			return true
		}
	}
	return false
}

func trafficSummary(traffic branchResult[model.VisitorStats], records branchResult[recordSet]) model.TrafficSummary {
	if !traffic.status.Available {
		return model.TrafficSummary{MissingReason: traffic.status.MissingReason}
	}
	summary := model.TrafficSummary{Visitors: traffic.value.Visitors, Available: true}
	if records.status.Available && traffic.value.Visitors > 0 {
		summary.VisitorToIntakeRate = percentage(len(records.value.records), int(traffic.value.Visitors))
	}
	return summary
}

func paymentSummary(payments branchResult[[]model.PaymentTransaction], now time.Time, windowHours float64) model.PaymentSummary {
	if !payments.status.Available {
		return model.PaymentSummary{MissingReason: payments.status.MissingReason}
	}
	return SummarizePayments(payments.value, now, windowHours)
}

// ------------------- Branches -------------------

type branchResult[T any] struct {
	value  T
	status model.SourceStatus
}

// runBranch fetches one source under the branch timeout with retries.
// Failures come back as an unavailable status, never as an error.
func runBranch[T any](ctx context.Context, o *Orchestrator, source model.SourceName, configured bool,
	count func(T) int, fetch func(context.Context) (T, error)) branchResult[T] {
	if !configured {
		return branchResult[T]{status: FailedStatus(source, ErrSourceNotConfigured, 0, 0)}
	}

	start := time.Now()
	bctx, cancel := context.WithTimeout(ctx, o.opts.BranchTimeout)
	defer cancel()

	var value T
	attempts, err := o.retrier.Do(bctx, string(source), func(ctx context.Context) error {
		v, err := callWithContext(ctx, fetch)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		var zero T
		return branchResult[T]{value: zero, status: FailedStatus(source, err, attempts, elapsed)}
	}
	return branchResult[T]{value: value, status: SucceededStatus(source, count(value), attempts, elapsed)}
}

// callWithContext runs fetch so that a provider ignoring ctx still cannot
// hold the branch past its deadline. A panicking provider becomes an error.
func callWithContext[T any](ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: eris.Errorf("provider panicked: %v", r)}
			}
		}()
		v, err := fetch(ctx)
		ch <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.value, r.err
	}
}
