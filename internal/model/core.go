package model

// ServiceDomain selects the status vocabulary used for normalization
type ServiceDomain string

const (
	DomainServiceRecord ServiceDomain = "service_record"
	DomainSupportTicket ServiceDomain = "support_ticket"
)

// CanonicalStatus is a normalized lifecycle state
type CanonicalStatus string

// Service record statuses
const (
	StatusPending   CanonicalStatus = "pending"
	StatusMatched   CanonicalStatus = "matched"
	StatusActive    CanonicalStatus = "active"
	StatusCompleted CanonicalStatus = "completed"
	StatusCancelled CanonicalStatus = "cancelled"
)

// Support ticket statuses
const (
	TicketTodo       CanonicalStatus = "todo"
	TicketInProgress CanonicalStatus = "in_progress"
	TicketDone       CanonicalStatus = "done"
)

// DefaultStatus returns the fallback status for a domain
func DefaultStatus(domain ServiceDomain) CanonicalStatus {
	if domain == DomainSupportTicket {
		return TicketTodo
	}
	return StatusPending
}

// PipelineStage is one step of the positive conversion funnel
type PipelineStage string

const (
	StageIntake           PipelineStage = "intake"
	StageFirstContact     PipelineStage = "first-contact"
	StageNeedsMapped      PipelineStage = "needs-mapped"
	StageMatching         PipelineStage = "matching"
	StageProposalSent     PipelineStage = "proposal-sent"
	StageProposalAccepted PipelineStage = "proposal-accepted"
	StagePaymentConfirmed PipelineStage = "payment-confirmed"
	StageServiceStarted   PipelineStage = "service-started"
)

var stageOrder = []PipelineStage{
	StageIntake,
	StageFirstContact,
	StageNeedsMapped,
	StageMatching,
	StageProposalSent,
	StageProposalAccepted,
	StagePaymentConfirmed,
	StageServiceStarted,
}

var stageLabels = map[PipelineStage]string{
	StageIntake:           "Intake",
	StageFirstContact:     "First contact",
	StageNeedsMapped:      "Needs mapped",
	StageMatching:         "Matching",
	StageProposalSent:     "Proposal sent",
	StageProposalAccepted: "Proposal accepted",
	StagePaymentConfirmed: "Payment confirmed",
	StageServiceStarted:   "Service started",
}

// Stages returns all stages in funnel order
func Stages() []PipelineStage {
	out := make([]PipelineStage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Index returns the position of the stage in funnel order, or -1
func (s PipelineStage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Label returns the display label of the stage
func (s PipelineStage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// NegativeOutcome is a terminal, non-converting state
type NegativeOutcome string

const (
	OutcomeRejected  NegativeOutcome = "rejected"
	OutcomeCancelled NegativeOutcome = "cancelled"
	OutcomeDeclined  NegativeOutcome = "declined"
	OutcomeExpired   NegativeOutcome = "expired"
)

// NegativeOutcomes returns all outcome categories in report order
func NegativeOutcomes() []NegativeOutcome {
	return []NegativeOutcome{OutcomeRejected, OutcomeCancelled, OutcomeDeclined, OutcomeExpired}
}

// Severity grades an alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (1) to critical (4)
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AlertCategory names one threshold check
type AlertCategory string

const (
	AlertStuckIntake        AlertCategory = "stuck_intake"
	AlertUnpaidAcceptance   AlertCategory = "unpaid_acceptance"
	AlertPaymentFailures    AlertCategory = "payment_failures"
	AlertQualityDegradation AlertCategory = "quality_degradation"
	AlertIncompleteProfiles AlertCategory = "incomplete_profiles"
	AlertAgedTickets        AlertCategory = "aged_tickets"
)

// AlertCategories returns every check in evaluation order
func AlertCategories() []AlertCategory {
	return []AlertCategory{
		AlertStuckIntake,
		AlertUnpaidAcceptance,
		AlertPaymentFailures,
		AlertQualityDegradation,
		AlertIncompleteProfiles,
		AlertAgedTickets,
	}
}

// SourceName identifies one data-provider branch
type SourceName string

const (
	SourceRecords  SourceName = "records"
	SourceTickets  SourceName = "tickets"
	SourcePayments SourceName = "payments"
	SourceFeedback SourceName = "feedback"
	SourceProfiles SourceName = "profiles"
	SourceTraffic  SourceName = "traffic"
)

// SourceNames returns every branch in report order
func SourceNames() []SourceName {
	return []SourceName{SourceRecords, SourceTickets, SourcePayments, SourceFeedback, SourceProfiles, SourceTraffic}
}

// SourceFor returns the branch an alert category depends on
func (c AlertCategory) SourceFor() SourceName {
	switch c {
	case AlertPaymentFailures:
		return SourcePayments
	case AlertQualityDegradation:
		return SourceFeedback
	case AlertIncompleteProfiles:
		return SourceProfiles
	case AlertAgedTickets:
		return SourceTickets
	}
	return SourceRecords
}
