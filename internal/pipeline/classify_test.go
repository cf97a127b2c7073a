package pipeline

import (
	"testing"

	"go-funnel-metrics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func classify(c *StageClassifier, rec model.RawRecord) Classification {
	status, _ := LookupStatus(rec.Status, model.DomainServiceRecord)
	return c.Classify(rec, status)
}

func TestClassify_NegativeOutcomes(t *testing.T) {
	c := NewStageClassifier(nil, true)
	tests := []struct {
		raw  string
		want model.NegativeOutcome
	}{
		{"CANCELADO", model.OutcomeCancelled},
		{"cancelled", model.OutcomeCancelled},
		{"Reprovada", model.OutcomeRejected},
		{"rejected", model.OutcomeRejected},
		{"Recusado", model.OutcomeDeclined},
		{"proposal_declined", model.OutcomeDeclined},
		{"expired", model.OutcomeExpired},
		{"Vencido", model.OutcomeExpired},
	}
	for _, tt := range tests {
		got := classify(c, model.RawRecord{ID: "r", Status: tt.raw})
		assert.True(t, got.IsNegative(), "%q should be negative", tt.raw)
		assert.Equal(t, tt.want, got.Outcome, "%q", tt.raw)
		assert.Empty(t, got.Stage, "%q must not also carry a stage", tt.raw)
	}
}

func TestClassify_PositiveStages(t *testing.T) {
	c := NewStageClassifier(nil, true)
	tests := []struct {
		name string
		rec  model.RawRecord
		want model.PipelineStage
	}{
		{"pending without professional", model.RawRecord{Status: "pending"}, model.StageIntake},
		{"pending with professional", model.RawRecord{Status: "pendente", AssignedProfessionalRef: "p1"}, model.StageMatching},
		{"unknown token defaults to intake", model.RawRecord{Status: "teleported"}, model.StageIntake},
		{"first contact", model.RawRecord{Status: "Contatado"}, model.StageFirstContact},
		{"needs mapped", model.RawRecord{Status: "briefing"}, model.StageNeedsMapped},
		{"matched", model.RawRecord{Status: "matched"}, model.StageMatching},
		{"matched with payment", model.RawRecord{Status: "matched", PaymentRef: "pay_1"}, model.StagePaymentConfirmed},
		{"proposal sent", model.RawRecord{Status: "Proposta Enviada"}, model.StageProposalSent},
		{"proposal accepted", model.RawRecord{Status: "proposta_aceita"}, model.StageProposalAccepted},
		{"paid", model.RawRecord{Status: "pago"}, model.StagePaymentConfirmed},
		{"active", model.RawRecord{Status: "Em Andamento"}, model.StageServiceStarted},
		{"completed", model.RawRecord{Status: "completed"}, model.StageServiceStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(c, tt.rec)
			assert.False(t, got.IsNegative())
			assert.Equal(t, tt.want, got.Stage)
		})
	}
}

// A legacy "accepted" token meant both "match accepted" and "proposal
// accepted". A payment reference resolves it to the later stage.
func TestClassify_AmbiguousTokenTieBreak(t *testing.T) {
	logger, logs := observedLogger(t)
	c := NewStageClassifier(logger, true)

	for _, token := range []string{"accepted", "Aceito", "APROVADO"} {
		withPayment := classify(c, model.RawRecord{ID: "a", Status: token, PaymentRef: "pi_1"})
		assert.Equal(t, model.StageProposalAccepted, withPayment.Stage, token)
		assert.True(t, withPayment.Ambiguous, token)

		withoutPayment := classify(c, model.RawRecord{ID: "b", Status: token})
		assert.Equal(t, model.StageMatching, withoutPayment.Stage, token)
		assert.True(t, withoutPayment.Ambiguous, token)
	}

	resolved := logs.FilterMessage("classify: ambiguous token resolved").All()
	require.Len(t, resolved, 6)
	assert.Equal(t, zapcore.InfoLevel, resolved[0].Level)
	assert.Equal(t, true, resolved[0].ContextMap()["has_payment"])
}

func TestClassify_MissingStageRule(t *testing.T) {
	rec := model.RawRecord{ID: "t1", Status: "whatever"}

	strict := NewStageClassifier(nil, true)
	assert.Panics(t, func() { strict.Classify(rec, model.TicketTodo) })

	logger, logs := observedLogger(t)
	lenient := NewStageClassifier(logger, false)
	got := lenient.Classify(rec, model.TicketTodo)
	assert.Equal(t, model.StageIntake, got.Stage)
	require.Equal(t, 1, logs.FilterMessage("classify: no stage rule, degrading to intake").Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestClassify_EveryKnownTokenLandsInExactlyOneBucket(t *testing.T) {
	c := NewStageClassifier(nil, true)
	recs := []model.RawRecord{
		{},
		{AssignedProfessionalRef: "p"},
		{PaymentRef: "pay"},
		{AssignedProfessionalRef: "p", PaymentRef: "pay"},
	}
	for token, status := range serviceStatuses {
		for _, base := range recs {
			base.Status = token
			got := c.Classify(base, status)
			hasStage := got.Stage != ""
			assert.True(t, hasStage != got.IsNegative(), "token %q: stage=%q outcome=%q", token, got.Stage, got.Outcome)
			if hasStage {
				assert.GreaterOrEqual(t, got.Stage.Index(), 0, "token %q produced unknown stage %q", token, got.Stage)
			}
		}
	}
}

func TestClassify_EveryCanonicalServiceStatusHasARule(t *testing.T) {
	c := NewStageClassifier(nil, true)
	for _, status := range []model.CanonicalStatus{
		model.StatusPending, model.StatusMatched, model.StatusActive, model.StatusCompleted, model.StatusCancelled,
	} {
		assert.NotPanics(t, func() { c.Classify(model.RawRecord{Status: string(status)}, status) }, string(status))
	}
}
