package model

import "time"

// Reasons a branch or sub-metric is unavailable
const (
	ReasonNotConfigured = "source_not_configured"
	ReasonTimeout       = "source_timeout"
	ReasonError         = "source_error"
)

// SourceStatus is the outcome of one data-provider branch
type SourceStatus struct {
	Source        SourceName    `json:"source"`
	Available     bool          `json:"available"`
	Records       int           `json:"records"`
	Duplicates    int           `json:"duplicates,omitempty"`
	Attempts      int           `json:"attempts"`
	Duration      time.Duration `json:"durationNs"`
	MissingReason string        `json:"missingReason,omitempty"`
	Error         string        `json:"error,omitempty"`
}
