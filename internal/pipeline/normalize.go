package pipeline

import (
	"strings"
	"unicode"

	"go-funnel-metrics/internal/model"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// serviceStatuses maps every known spelling (folded) to its canonical status.
// Portuguese and English variants from every schema generation live here.
var serviceStatuses = map[string]model.CanonicalStatus{
	// pending
	"pending":                model.StatusPending,
	"pendente":               model.StatusPending,
	"aguardando":             model.StatusPending,
	"aguardando_atendimento": model.StatusPending,
	"open":                   model.StatusPending,
	"aberto":                 model.StatusPending,
	"aberta":                 model.StatusPending,
	"new":                    model.StatusPending,
	"novo":                   model.StatusPending,
	"nova":                   model.StatusPending,
	"created":                model.StatusPending,
	"criado":                 model.StatusPending,
	"criada":                 model.StatusPending,
	"requested":              model.StatusPending,
	"solicitado":             model.StatusPending,
	"solicitada":             model.StatusPending,
	"waiting":                model.StatusPending,
	"em_analise":             model.StatusPending,
	"intake":                 model.StatusPending,
	"triagem":                model.StatusPending,
	"contacted":              model.StatusPending,
	"first_contact":          model.StatusPending,
	"contatado":              model.StatusPending,
	"contactado":             model.StatusPending,
	"primeiro_contato":       model.StatusPending,
	"needs_mapped":           model.StatusPending,
	"mapped":                 model.StatusPending,
	"mapeado":                model.StatusPending,
	"necessidades_mapeadas":  model.StatusPending,
	"briefing":               model.StatusPending,
	"matching":               model.StatusPending,
	"em_matching":            model.StatusPending,
	"searching":              model.StatusPending,
	"buscando_profissional":  model.StatusPending,

	// matched
	"matched":              model.StatusMatched,
	"match":                model.StatusMatched,
	"assigned":             model.StatusMatched,
	"atribuido":            model.StatusMatched,
	"atribuida":            model.StatusMatched,
	"designado":            model.StatusMatched,
	"combinado":            model.StatusMatched,
	"accepted":             model.StatusMatched,
	"aceito":               model.StatusMatched,
	"aceita":               model.StatusMatched,
	"approved":             model.StatusMatched,
	"aprovado":             model.StatusMatched,
	"aprovada":             model.StatusMatched,
	"proposal_sent":        model.StatusMatched,
	"proposta_enviada":     model.StatusMatched,
	"quoted":               model.StatusMatched,
	"orcamento_enviado":    model.StatusMatched,
	"proposal_accepted":    model.StatusMatched,
	"proposta_aceita":      model.StatusMatched,
	"paid":                 model.StatusMatched,
	"pago":                 model.StatusMatched,
	"paga":                 model.StatusMatched,
	"payment_confirmed":    model.StatusMatched,
	"pagamento_confirmado": model.StatusMatched,

	// active
	"active":       model.StatusActive,
	"ativo":        model.StatusActive,
	"ativa":        model.StatusActive,
	"started":      model.StatusActive,
	"in_progress":  model.StatusActive,
	"ongoing":      model.StatusActive,
	"em_andamento": model.StatusActive,
	"em_execucao":  model.StatusActive,
	"iniciado":     model.StatusActive,
	"iniciada":     model.StatusActive,
	"scheduled":    model.StatusActive,
	"agendado":     model.StatusActive,

	// completed
	"completed":  model.StatusCompleted,
	"complete":   model.StatusCompleted,
	"done":       model.StatusCompleted,
	"finished":   model.StatusCompleted,
	"concluido":  model.StatusCompleted,
	"concluida":  model.StatusCompleted,
	"finalizado": model.StatusCompleted,
	"finalizada": model.StatusCompleted,
	"entregue":   model.StatusCompleted,

	// cancelled, including every negative-outcome spelling
	"cancelled":         model.StatusCancelled,
	"canceled":          model.StatusCancelled,
	"cancel":            model.StatusCancelled,
	"cancelado":         model.StatusCancelled,
	"cancelada":         model.StatusCancelled,
	"rejected":          model.StatusCancelled,
	"rejeitado":         model.StatusCancelled,
	"rejeitada":         model.StatusCancelled,
	"reprovado":         model.StatusCancelled,
	"reprovada":         model.StatusCancelled,
	"declined":          model.StatusCancelled,
	"recusado":          model.StatusCancelled,
	"recusada":          model.StatusCancelled,
	"declinado":         model.StatusCancelled,
	"declinada":         model.StatusCancelled,
	"proposal_declined": model.StatusCancelled,
	"proposta_recusada": model.StatusCancelled,
	"expired":           model.StatusCancelled,
	"expirado":          model.StatusCancelled,
	"expirada":          model.StatusCancelled,
	"vencido":           model.StatusCancelled,
	"vencida":           model.StatusCancelled,
	"timed_out":         model.StatusCancelled,
}

var ticketStatuses = map[string]model.CanonicalStatus{
	"todo":      model.TicketTodo,
	"to_do":     model.TicketTodo,
	"a_fazer":   model.TicketTodo,
	"open":      model.TicketTodo,
	"aberto":    model.TicketTodo,
	"aberta":    model.TicketTodo,
	"new":       model.TicketTodo,
	"novo":      model.TicketTodo,
	"pending":   model.TicketTodo,
	"pendente":  model.TicketTodo,

	"in_progress":    model.TicketInProgress,
	"doing":          model.TicketInProgress,
	"working":        model.TicketInProgress,
	"fazendo":        model.TicketInProgress,
	"em_andamento":   model.TicketInProgress,
	"em_atendimento": model.TicketInProgress,

	"done":      model.TicketDone,
	"resolved":  model.TicketDone,
	"resolvido": model.TicketDone,
	"resolvida": model.TicketDone,
	"feito":     model.TicketDone,
	"concluido": model.TicketDone,
	"concluida": model.TicketDone,
	"closed":    model.TicketDone,
	"fechado":   model.TicketDone,
	"fechada":   model.TicketDone,
}

// foldToken lower-cases, strips accents and joins words with underscores,
// so "Em Andamento", "em-andamento" and "EM_ANDAMENTO" share one key.
func foldToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	// transformers are stateful, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSep := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '_' || r == '.' || r == '/' {
			if !lastSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			lastSep = true
			continue
		}
		b.WriteRune(r)
		lastSep = false
	}
	return strings.TrimSuffix(b.String(), "_")
}

// LookupStatus maps a raw token to its canonical status without side effects.
// The boolean is false when the token is empty or unknown, in which case the
// domain default is returned.
func LookupStatus(raw string, domain model.ServiceDomain) (model.CanonicalStatus, bool) {
	table := serviceStatuses
	if domain == model.DomainSupportTicket {
		table = ticketStatuses
	}
	if status, ok := table[foldToken(raw)]; ok {
		return status, true
	}
	return model.DefaultStatus(domain), false
}

// StatusNormalizer is the single place where unknown status tokens fall back
// to a default, and the only place that reports it.
type StatusNormalizer struct {
	logger *zap.Logger
}

// NewStatusNormalizer creates a normalizer; a nil logger disables warnings
func NewStatusNormalizer(logger *zap.Logger) *StatusNormalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusNormalizer{logger: logger}
}

// Normalize maps a raw status to its canonical value. It never fails:
// empty or unknown input yields the domain default plus a warning.
func (n *StatusNormalizer) Normalize(raw string, domain model.ServiceDomain) model.CanonicalStatus {
	status, known := LookupStatus(raw, domain)
	if !known {
		n.logger.Warn("status: unknown token, using default",
			zap.String("raw", raw),
			zap.String("domain", string(domain)),
			zap.String("default", string(status)),
		)
	}
	return status
}
