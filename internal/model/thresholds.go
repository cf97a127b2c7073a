package model

import "github.com/rotisserie/eris"

// ThresholdConfig holds every operational threshold used by the
// bottleneck detector and the alert evaluator.
type ThresholdConfig struct {
	BottleneckThresholdHours float64 `json:"bottleneckThresholdHours" mapstructure:"bottleneck_threshold_hours" yaml:"bottleneck_threshold_hours"`

	// Records sitting in intake without a professional
	StuckIntakeHours         float64 `json:"stuckIntakeHours" mapstructure:"stuck_intake_hours" yaml:"stuck_intake_hours"`
	StuckIntakeCriticalCount int     `json:"stuckIntakeCriticalCount" mapstructure:"stuck_intake_critical_count" yaml:"stuck_intake_critical_count"`

	// Accepted proposals without a payment reference
	StaleUnpaidProposalHours float64 `json:"staleUnpaidProposalHours" mapstructure:"stale_unpaid_proposal_hours" yaml:"stale_unpaid_proposal_hours"`
	UnpaidProposalHighCount  int     `json:"unpaidProposalHighCount" mapstructure:"unpaid_proposal_high_count" yaml:"unpaid_proposal_high_count"`

	// Payment processor failures
	PaymentWindowHours    float64 `json:"paymentWindowHours" mapstructure:"payment_window_hours" yaml:"payment_window_hours"`
	PaymentFailureRatePct float64 `json:"paymentFailureRatePct" mapstructure:"payment_failure_rate_pct" yaml:"payment_failure_rate_pct"`
	MinPaymentFailures    int     `json:"minPaymentFailures" mapstructure:"min_payment_failures" yaml:"min_payment_failures"`

	// Feedback quality (0-10 scale)
	FeedbackWindowDays      int     `json:"feedbackWindowDays" mapstructure:"feedback_window_days" yaml:"feedback_window_days"`
	DetractorMaxScore       float64 `json:"detractorMaxScore" mapstructure:"detractor_max_score" yaml:"detractor_max_score"`
	DetractorCountThreshold int     `json:"detractorCountThreshold" mapstructure:"detractor_count_threshold" yaml:"detractor_count_threshold"`

	ProfileCompletenessFloorPct float64 `json:"profileCompletenessFloorPct" mapstructure:"profile_completeness_floor_pct" yaml:"profile_completeness_floor_pct"`

	// Support tickets
	CriticalTicketAgeHours float64 `json:"criticalTicketAgeHours" mapstructure:"critical_ticket_age_hours" yaml:"critical_ticket_age_hours"`
	AgedTicketHighCount    int     `json:"agedTicketHighCount" mapstructure:"aged_ticket_high_count" yaml:"aged_ticket_high_count"`
}

// DefaultThresholds returns the documented default thresholds
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		BottleneckThresholdHours:    48,
		StuckIntakeHours:            48,
		StuckIntakeCriticalCount:    5,
		StaleUnpaidProposalHours:    48,
		UnpaidProposalHighCount:     3,
		PaymentWindowHours:          24,
		PaymentFailureRatePct:       10,
		MinPaymentFailures:          1,
		FeedbackWindowDays:          7,
		DetractorMaxScore:           6,
		DetractorCountThreshold:     5,
		ProfileCompletenessFloorPct: 70,
		CriticalTicketAgeHours:      24,
		AgedTicketHighCount:         10,
	}
}

// Validate rejects negative durations and counts, and percentages outside [0, 100]
func (t ThresholdConfig) Validate() error {
	hours := map[string]float64{
		"bottleneck_threshold_hours":  t.BottleneckThresholdHours,
		"stuck_intake_hours":          t.StuckIntakeHours,
		"stale_unpaid_proposal_hours": t.StaleUnpaidProposalHours,
		"payment_window_hours":        t.PaymentWindowHours,
		"critical_ticket_age_hours":   t.CriticalTicketAgeHours,
		"detractor_max_score":         t.DetractorMaxScore,
	}
	for name, v := range hours {
		if v < 0 {
			return eris.Errorf("%s must not be negative, got %v", name, v)
		}
	}

	counts := map[string]int{
		"stuck_intake_critical_count": t.StuckIntakeCriticalCount,
		"unpaid_proposal_high_count":  t.UnpaidProposalHighCount,
		"min_payment_failures":        t.MinPaymentFailures,
		"feedback_window_days":        t.FeedbackWindowDays,
		"detractor_count_threshold":   t.DetractorCountThreshold,
		"aged_ticket_high_count":      t.AgedTicketHighCount,
	}
	for name, v := range counts {
		if v < 0 {
			return eris.Errorf("%s must not be negative, got %d", name, v)
		}
	}

	pcts := map[string]float64{
		"payment_failure_rate_pct":       t.PaymentFailureRatePct,
		"profile_completeness_floor_pct": t.ProfileCompletenessFloorPct,
	}
	for name, v := range pcts {
		if v < 0 || v > 100 {
			return eris.Errorf("%s must be between 0 and 100, got %v", name, v)
		}
	}
	if t.DetractorMaxScore > 10 {
		return eris.Errorf("detractor_max_score must be on the 0-10 scale, got %v", t.DetractorMaxScore)
	}
	return nil
}
