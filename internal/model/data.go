package model

import "time"

// StageSnapshot is the aggregate for one funnel stage
type StageSnapshot struct {
	ID                     PipelineStage `json:"id"`
	Label                  string        `json:"label"`
	Count                  int           `json:"count"`
	AverageDwellHours      float64       `json:"averageDwellHours"`
	CumulativeDwellHours   float64       `json:"cumulativeDwellHours"`
	DwellSampleSize        int           `json:"dwellSampleSize"`
	ConversionFromPrevious *float64      `json:"conversionFromPrevious"`
	DropOffCount           *int          `json:"dropOffCount"`
	Available              bool          `json:"available"`
	MissingReason          string        `json:"missingReason,omitempty"`
}

// NegativeBreakdown counts one negative outcome category
type NegativeBreakdown struct {
	Category          NegativeOutcome `json:"category"`
	Count             int             `json:"count"`
	PercentageOfTotal *float64        `json:"percentageOfTotal"`
}

// FunnelReport is the ordered stage aggregate with its negative breakdown
type FunnelReport struct {
	Stages                []StageSnapshot     `json:"stages"`
	NegativeBreakdown     []NegativeBreakdown `json:"negativeBreakdown"`
	OverallConversionRate *float64            `json:"overallConversionRate"`
	TotalPositive         int                 `json:"totalPositive"`
	TotalNegative         int                 `json:"totalNegative"`
}

// Stage returns the snapshot for a stage
func (f FunnelReport) Stage(id PipelineStage) (StageSnapshot, bool) {
	for _, s := range f.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return StageSnapshot{}, false
}

// Negative returns the breakdown entry for an outcome
func (f FunnelReport) Negative(category NegativeOutcome) (NegativeBreakdown, bool) {
	for _, n := range f.NegativeBreakdown {
		if n.Category == category {
			return n, true
		}
	}
	return NegativeBreakdown{}, false
}

// Bottleneck is a stage whose average dwell exceeds the threshold
type Bottleneck struct {
	StageID           PipelineStage `json:"stageId"`
	Label             string        `json:"label"`
	Count             int           `json:"count"`
	AverageDwellHours float64       `json:"averageDwellHours"`
}

// Alert is a triggered threshold check
type Alert struct {
	ID          string        `json:"id"`
	Category    AlertCategory `json:"category"`
	Severity    Severity      `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	MetricValue float64       `json:"metricValue"`
	Threshold   float64       `json:"threshold"`
	RoutingHint string        `json:"routingHint"`
}

// AlertCheck records whether a category could be evaluated and whether it fired
type AlertCheck struct {
	Category      AlertCategory `json:"category"`
	Source        SourceName    `json:"source"`
	Available     bool          `json:"available"`
	Triggered     bool          `json:"triggered"`
	MissingReason string        `json:"missingReason,omitempty"`
}

// TrafficSummary relates web-analytics visitors to funnel intake
type TrafficSummary struct {
	Visitors            int64    `json:"visitors"`
	VisitorToIntakeRate *float64 `json:"visitorToIntakeRate"`
	Available           bool     `json:"available"`
	MissingReason       string   `json:"missingReason,omitempty"`
}

// PaymentSummary counts payment transactions in the payment window
type PaymentSummary struct {
	Total         int      `json:"total"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	FailureRate   *float64 `json:"failureRate"`
	Available     bool     `json:"available"`
	MissingReason string   `json:"missingReason,omitempty"`
}

// ReportFilter narrows the records to a location
type ReportFilter struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// Report is the full executive report returned to callers
type Report struct {
	RunID                 string              `json:"runId,omitempty"`
	WindowDays            int                 `json:"windowDays"`
	Filter                ReportFilter        `json:"filter"`
	Stages                []StageSnapshot     `json:"stages"`
	NegativeBreakdown     []NegativeBreakdown `json:"negativeBreakdown"`
	OverallConversionRate *float64            `json:"overallConversionRate"`
	Bottlenecks           []Bottleneck        `json:"bottlenecks"`
	Alerts                []Alert             `json:"alerts"`
	AlertChecks           []AlertCheck        `json:"alertChecks"`
	Traffic               TrafficSummary      `json:"traffic"`
	Payments              PaymentSummary      `json:"payments"`
	Sources               []SourceStatus      `json:"sources"`
	Timestamp             time.Time           `json:"timestamp"`
	// Cached is set when the report was served from the cache
	Cached bool `json:"cached,omitempty"`
}

// Funnel returns the funnel part of the report
func (r Report) Funnel() FunnelReport {
	return FunnelReport{
		Stages:                r.Stages,
		NegativeBreakdown:     r.NegativeBreakdown,
		OverallConversionRate: r.OverallConversionRate,
	}
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "json", "csv", "database", "s3"
	Path        string    `json:"path"` // file path, table name or object key
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
