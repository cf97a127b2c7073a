package pipeline

import (
	"fmt"

	"go-funnel-metrics/internal/model"

	"go.uber.org/zap"
)

// negativeFamilies lists the folded tokens of each negative outcome.
var negativeFamilies = map[string]model.NegativeOutcome{
	"rejected":  model.OutcomeRejected,
	"rejeitado": model.OutcomeRejected,
	"rejeitada": model.OutcomeRejected,
	"reprovado": model.OutcomeRejected,
	"reprovada": model.OutcomeRejected,

	"cancelled": model.OutcomeCancelled,
	"canceled":  model.OutcomeCancelled,
	"cancel":    model.OutcomeCancelled,
	"cancelado": model.OutcomeCancelled,
	"cancelada": model.OutcomeCancelled,

	"declined":          model.OutcomeDeclined,
	"recusado":          model.OutcomeDeclined,
	"recusada":          model.OutcomeDeclined,
	"declinado":         model.OutcomeDeclined,
	"declinada":         model.OutcomeDeclined,
	"proposal_declined": model.OutcomeDeclined,
	"proposta_recusada": model.OutcomeDeclined,

	"expired":   model.OutcomeExpired,
	"expirado":  model.OutcomeExpired,
	"expirada":  model.OutcomeExpired,
	"vencido":   model.OutcomeExpired,
	"vencida":   model.OutcomeExpired,
	"timed_out": model.OutcomeExpired,
}

// stageTokens are legacy tokens precise enough to name a stage directly.
var stageTokens = map[string]model.PipelineStage{
	"contacted":             model.StageFirstContact,
	"first_contact":         model.StageFirstContact,
	"contatado":             model.StageFirstContact,
	"contactado":            model.StageFirstContact,
	"primeiro_contato":      model.StageFirstContact,
	"needs_mapped":          model.StageNeedsMapped,
	"mapped":                model.StageNeedsMapped,
	"mapeado":               model.StageNeedsMapped,
	"necessidades_mapeadas": model.StageNeedsMapped,
	"briefing":              model.StageNeedsMapped,
	"matching":              model.StageMatching,
	"em_matching":           model.StageMatching,
	"searching":             model.StageMatching,
	"buscando_profissional": model.StageMatching,
	"proposal_sent":         model.StageProposalSent,
	"proposta_enviada":      model.StageProposalSent,
	"quoted":                model.StageProposalSent,
	"orcamento_enviado":     model.StageProposalSent,
	"proposal_accepted":     model.StageProposalAccepted,
	"proposta_aceita":       model.StageProposalAccepted,
	"paid":                  model.StagePaymentConfirmed,
	"pago":                  model.StagePaymentConfirmed,
	"paga":                  model.StagePaymentConfirmed,
	"payment_confirmed":     model.StagePaymentConfirmed,
	"pagamento_confirmado":  model.StagePaymentConfirmed,
}

// ambiguousTokens historically meant both "match accepted" and "proposal
// accepted". A payment reference resolves toward the later stage, its
// absence toward the earlier one. This is an inferred business rule.
var ambiguousTokens = map[string]struct{ earlier, later model.PipelineStage }{
	"accepted": {model.StageMatching, model.StageProposalAccepted},
	"aceito":   {model.StageMatching, model.StageProposalAccepted},
	"aceita":   {model.StageMatching, model.StageProposalAccepted},
	"approved": {model.StageMatching, model.StageProposalAccepted},
	"aprovado": {model.StageMatching, model.StageProposalAccepted},
	"aprovada": {model.StageMatching, model.StageProposalAccepted},
}

// stageRule maps a canonical status to a stage, refined by auxiliary signals
type stageRule struct {
	base             model.PipelineStage
	withProfessional model.PipelineStage
	withPayment      model.PipelineStage
}

var canonicalStages = map[model.CanonicalStatus]stageRule{
	model.StatusPending:   {base: model.StageIntake, withProfessional: model.StageMatching},
	model.StatusMatched:   {base: model.StageMatching, withPayment: model.StagePaymentConfirmed},
	model.StatusActive:    {base: model.StageServiceStarted},
	model.StatusCompleted: {base: model.StageServiceStarted},
}

// Classification is the result of classifying one record: either a
// positive stage or a negative outcome, never both.
type Classification struct {
	Stage     model.PipelineStage   `json:"stage,omitempty"`
	Outcome   model.NegativeOutcome `json:"outcome,omitempty"`
	Ambiguous bool                  `json:"ambiguous,omitempty"`
}

// IsNegative reports whether the record left the funnel
func (c Classification) IsNegative() bool { return c.Outcome != "" }

// StageClassifier assigns records to a funnel stage or negative outcome
type StageClassifier struct {
	logger *zap.Logger
	strict bool
}

// NewStageClassifier creates a classifier. In strict mode a canonical status
// without a stage rule panics instead of degrading to intake.
func NewStageClassifier(logger *zap.Logger, strict bool) *StageClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageClassifier{logger: logger, strict: strict}
}

// Classify places a record using its raw status and the canonical status
// produced by the normalizer.
func (c *StageClassifier) Classify(rec model.RawRecord, status model.CanonicalStatus) Classification {
	token := foldToken(rec.Status)

	if outcome, ok := negativeFamilies[token]; ok {
		return Classification{Outcome: outcome}
	}
	if status == model.StatusCancelled {
		return Classification{Outcome: model.OutcomeCancelled}
	}

	if pair, ok := ambiguousTokens[token]; ok {
		stage := pair.earlier
		if rec.HasPayment() {
			stage = pair.later
		}
		c.logger.Info("classify: ambiguous token resolved",
			zap.String("record_id", rec.ID),
			zap.String("raw", rec.Status),
			zap.String("stage", string(stage)),
			zap.Bool("has_payment", rec.HasPayment()),
		)
		return Classification{Stage: stage, Ambiguous: true}
	}

	if stage, ok := stageTokens[token]; ok {
		return Classification{Stage: stage}
	}

	rule, ok := canonicalStages[status]
	if !ok {
		if c.strict {
			panic(fmt.Sprintf("classify: no stage rule for canonical status %q", status))
		}
		c.logger.Error("classify: no stage rule, degrading to intake",
			zap.String("record_id", rec.ID),
			zap.String("status", string(status)),
		)
		return Classification{Stage: model.StageIntake}
	}

	switch {
	case rule.withPayment != "" && rec.HasPayment():
		return Classification{Stage: rule.withPayment}
	case rule.withProfessional != "" && rec.HasProfessional():
		return Classification{Stage: rule.withProfessional}
	}
	return Classification{Stage: rule.base}
}
