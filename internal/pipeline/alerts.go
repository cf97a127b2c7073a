package pipeline

import (
	"fmt"
	"sort"
	"time"

	"go-funnel-metrics/internal/model"

	"go.uber.org/zap"
)

// DataSources is the snapshot of raw data the alert checks run against.
// Classified carries the records as the aggregator already resolved them;
// when it is nil, Records are classified once by Evaluate.
// Missing holds the reason for every source that could not be fetched.
type DataSources struct {
	Records    []model.RawRecord
	Classified []ClassifiedRecord
	Tickets  []model.SupportTicket
	Payments []model.PaymentTransaction
	Feedback []model.Feedback
	Profiles []model.ProfessionalProfile
	Missing  map[model.SourceName]string
}

// MissingReason returns why a source is unavailable
func (d DataSources) MissingReason(source model.SourceName) (string, bool) {
	reason, ok := d.Missing[source]
	return reason, ok
}

// criticalTicketCategories are ticket categories that escalate aged tickets
var criticalTicketCategories = map[string]bool{
	"critical":   true,
	"critico":    true,
	"complaint":  true,
	"reclamacao": true,
	"urgent":     true,
	"urgente":    true,
}

type alertCheck func(DataSources) *model.Alert

// AlertEvaluator runs the fixed battery of threshold checks
type AlertEvaluator struct {
	thresholds model.ThresholdConfig
	normalizer *StatusNormalizer
	classifier *StageClassifier
	dwell      DwellCalculator
	logger     *zap.Logger
	checks     map[model.AlertCategory]alertCheck
}

// NewAlertEvaluator creates an evaluator with the given thresholds
func NewAlertEvaluator(thresholds model.ThresholdConfig, normalizer *StatusNormalizer, classifier *StageClassifier, dwell DwellCalculator, logger *zap.Logger) *AlertEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &AlertEvaluator{
		thresholds: thresholds,
		normalizer: normalizer,
		classifier: classifier,
		dwell:      dwell,
		logger:     logger,
	}
	e.checks = map[model.AlertCategory]alertCheck{
		model.AlertStuckIntake:        e.checkStuckIntake,
		model.AlertUnpaidAcceptance:   e.checkUnpaidAcceptance,
		model.AlertPaymentFailures:    e.checkPaymentFailures,
		model.AlertQualityDegradation: e.checkQualityDegradation,
		model.AlertIncompleteProfiles: e.checkIncompleteProfiles,
		model.AlertAgedTickets:        e.checkAgedTickets,
	}
	return e
}

// Evaluate runs every check whose source is available. It returns the
// triggered alerts, most severe first, and one check entry per category.
func (e *AlertEvaluator) Evaluate(src DataSources) ([]model.Alert, []model.AlertCheck) {
	alerts := make([]model.Alert, 0)
	checks := make([]model.AlertCheck, 0, len(model.AlertCategories()))
	if src.Classified == nil && len(src.Records) > 0 {
		src.Classified = e.classify(src.Records)
	}

	for _, category := range model.AlertCategories() {
		source := category.SourceFor()
		entry := model.AlertCheck{Category: category, Source: source, Available: true}

		if reason, missing := src.MissingReason(source); missing {
			entry.Available = false
			entry.MissingReason = reason
			checks = append(checks, entry)
			continue
		}

		alert, err := e.runCheck(category, src)
		if err != nil {
			entry.Available = false
			entry.MissingReason = "check_failed"
			checks = append(checks, entry)
			continue
		}
		if alert != nil {
			entry.Triggered = true
			alerts = append(alerts, *alert)
		}
		checks = append(checks, entry)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
	})
	return alerts, checks
}

// classify resolves records with the evaluator's own collaborators, for
// callers that did not aggregate first.
func (e *AlertEvaluator) classify(records []model.RawRecord) []ClassifiedRecord {
	return NewFunnelAggregator(e.normalizer, e.classifier, e.dwell, 1).Partition(records).Records()
}

// runCheck isolates one check so a panic cannot take down the others
func (e *AlertEvaluator) runCheck(category model.AlertCategory, src DataSources) (alert *model.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("alerts: check panicked",
				zap.String("category", string(category)),
				zap.Any("panic", r),
			)
			alert, err = nil, fmt.Errorf("check %s panicked: %v", category, r)
		}
	}()
	return e.checks[category](src), nil
}

func (e *AlertEvaluator) checkStuckIntake(src DataSources) *model.Alert {
	limit := e.thresholds.StuckIntakeHours
	stuck := 0
	for _, cr := range src.Classified {
		if cr.Record.HasProfessional() {
			continue
		}
		if c := cr.Classification; c.IsNegative() || c.Stage != model.StageIntake {
			continue
		}
		if age, known := e.dwell.HoursSince(cr.Record.CreatedAt); known && age > limit {
			stuck++
		}
	}
	if stuck == 0 {
		return nil
	}

	severity := model.SeverityMedium
	if stuck > e.thresholds.StuckIntakeCriticalCount {
		severity = model.SeverityCritical
	}
	return &model.Alert{
		ID:          string(model.AlertStuckIntake),
		Category:    model.AlertStuckIntake,
		Severity:    severity,
		Title:       "Requests stuck in intake",
		Description: fmt.Sprintf("%d requests in intake for more than %.0fh without an assigned professional", stuck, limit),
		MetricValue: float64(stuck),
		Threshold:   limit,
		RoutingHint: "matching.assign_professional",
	}
}

func (e *AlertEvaluator) checkUnpaidAcceptance(src DataSources) *model.Alert {
	limit := e.thresholds.StaleUnpaidProposalHours
	unpaid := 0
	for _, cr := range src.Classified {
		if cr.Record.HasPayment() {
			continue
		}
		if c := cr.Classification; c.IsNegative() || c.Stage != model.StageProposalAccepted {
			continue
		}
		if cr.DwellKnown && cr.DwellHours > limit {
			unpaid++
		}
	}
	if unpaid == 0 {
		return nil
	}

	severity := model.SeverityMedium
	if unpaid > e.thresholds.UnpaidProposalHighCount {
		severity = model.SeverityHigh
	}
	return &model.Alert{
		ID:          string(model.AlertUnpaidAcceptance),
		Category:    model.AlertUnpaidAcceptance,
		Severity:    severity,
		Title:       "Accepted proposals awaiting payment",
		Description: fmt.Sprintf("%d proposals accepted more than %.0fh ago have no payment", unpaid, limit),
		MetricValue: float64(unpaid),
		Threshold:   limit,
		RoutingHint: "payments.follow_up",
	}
}

func (e *AlertEvaluator) checkPaymentFailures(src DataSources) *model.Alert {
	summary := SummarizePayments(src.Payments, e.dwell.Now(), e.thresholds.PaymentWindowHours)
	if summary.FailureRate == nil || summary.Failed < e.thresholds.MinPaymentFailures {
		return nil
	}
	rate := *summary.FailureRate
	limit := e.thresholds.PaymentFailureRatePct
	if rate <= limit {
		return nil
	}

	severity := model.SeverityHigh
	if rate >= 2*limit {
		severity = model.SeverityCritical
	}
	return &model.Alert{
		ID:          string(model.AlertPaymentFailures),
		Category:    model.AlertPaymentFailures,
		Severity:    severity,
		Title:       "Payment failure rate above limit",
		Description: fmt.Sprintf("%d of %d payments failed in the last %.0fh (%.1f%%)", summary.Failed, summary.Total, e.thresholds.PaymentWindowHours, rate),
		MetricValue: rate,
		Threshold:   limit,
		RoutingHint: "payments.investigate_failures",
	}
}

func (e *AlertEvaluator) checkQualityDegradation(src DataSources) *model.Alert {
	since := e.dwell.Now().Add(-time.Duration(e.thresholds.FeedbackWindowDays) * 24 * time.Hour)
	detractors := 0
	for _, f := range src.Feedback {
		if f.CreatedAt.Before(since) {
			continue
		}
		if f.Score <= e.thresholds.DetractorMaxScore {
			detractors++
		}
	}
	limit := e.thresholds.DetractorCountThreshold
	if detractors <= limit {
		return nil
	}

	severity := model.SeverityHigh
	if detractors > 2*limit {
		severity = model.SeverityCritical
	}
	return &model.Alert{
		ID:          string(model.AlertQualityDegradation),
		Category:    model.AlertQualityDegradation,
		Severity:    severity,
		Title:       "Service quality degradation",
		Description: fmt.Sprintf("%d detractor ratings (score <= %.0f) in the last %d days", detractors, e.thresholds.DetractorMaxScore, e.thresholds.FeedbackWindowDays),
		MetricValue: float64(detractors),
		Threshold:   float64(limit),
		RoutingHint: "quality.review_feedback",
	}
}

func (e *AlertEvaluator) checkIncompleteProfiles(src DataSources) *model.Alert {
	complete := 0
	for _, p := range src.Profiles {
		if p.IsComplete() {
			complete++
		}
	}
	rate := percentage(complete, len(src.Profiles))
	if rate == nil {
		return nil
	}
	floor := e.thresholds.ProfileCompletenessFloorPct
	if *rate >= floor {
		return nil
	}

	severity := model.SeverityMedium
	if *rate < floor/2 {
		severity = model.SeverityHigh
	}
	return &model.Alert{
		ID:          string(model.AlertIncompleteProfiles),
		Category:    model.AlertIncompleteProfiles,
		Severity:    severity,
		Title:       "Professional profiles incomplete",
		Description: fmt.Sprintf("only %d of %d professional profiles are complete (%.1f%%)", complete, len(src.Profiles), *rate),
		MetricValue: *rate,
		Threshold:   floor,
		RoutingHint: "professionals.profile_completion",
	}
}

func (e *AlertEvaluator) checkAgedTickets(src DataSources) *model.Alert {
	limit := e.thresholds.CriticalTicketAgeHours
	aged, critical := 0, 0
	for _, t := range src.Tickets {
		if e.normalizer.Normalize(t.Status, model.DomainSupportTicket) == model.TicketDone {
			continue
		}
		age, known := e.dwell.HoursSince(t.CreatedAt)
		if !known || age <= limit {
			continue
		}
		aged++
		if criticalTicketCategories[foldToken(t.Category)] {
			critical++
		}
	}
	if aged == 0 {
		return nil
	}

	severity := model.SeverityLow
	switch {
	case critical > 0:
		severity = model.SeverityCritical
	case aged > e.thresholds.AgedTicketHighCount:
		severity = model.SeverityHigh
	}
	return &model.Alert{
		ID:          string(model.AlertAgedTickets),
		Category:    model.AlertAgedTickets,
		Severity:    severity,
		Title:       "Support tickets unresolved",
		Description: fmt.Sprintf("%d tickets open for more than %.0fh, %d of them critical or complaints", aged, limit, critical),
		MetricValue: float64(aged),
		Threshold:   limit,
		RoutingHint: "support.escalate",
	}
}

// SummarizePayments counts transactions created in the trailing window
func SummarizePayments(payments []model.PaymentTransaction, now time.Time, windowHours float64) model.PaymentSummary {
	since := now.Add(-time.Duration(windowHours * float64(time.Hour)))
	summary := model.PaymentSummary{Available: true}
	for _, p := range payments {
		if p.CreatedAt.Before(since) || p.CreatedAt.After(now) {
			continue
		}
		summary.Total++
		switch p.Status {
		case model.PaymentFailed:
			summary.Failed++
		case model.PaymentSucceeded:
			summary.Succeeded++
		}
	}
	summary.FailureRate = percentage(summary.Failed, summary.Total)
	return summary
}
