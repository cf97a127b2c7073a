package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/pkg/utils"
)

// ------------------- Schema-drift adapter -------------------

// Candidate keys per logical attribute, oldest schema last.
var (
	idKeys           = []string{"id", "_id", "jobId", "requestId"}
	statusKeys       = []string{"status", "situacao"}
	createdAtKeys    = []string{"createdAt", "created_at", "dataCriacao"}
	updatedAtKeys    = []string{"updatedAt", "updated_at", "dataAtualizacao"}
	professionalKeys = []string{"assignedProfessionalId", "professionalId", "profissionalId"}
	paymentKeys      = []string{"paymentId", "paymentIntentId", "pagamentoId"}
	locationKeys     = []string{"location", "address", "endereco"}
	cityKeys         = []string{"city", "cidade"}
	stateKeys        = []string{"state", "estado", "uf"}
	sourceKeys       = []string{"SourceURL", "source"}

	ticketCategoryKeys = []string{"category", "categoria", "type", "tipo"}
	ticketSubjectKeys  = []string{"subject", "assunto", "title", "titulo"}
)

// ExtractRecord builds the typed view of a provider document. Missing
// attributes stay at their zero value.
func ExtractRecord(doc model.GenericRecord) model.RawRecord {
	return model.RawRecord{
		ID:                      stringField(doc, idKeys...),
		Status:                  extractStatus(doc),
		CreatedAt:               timeField(doc, createdAtKeys...),
		UpdatedAt:               timeField(doc, updatedAtKeys...),
		AssignedProfessionalRef: stringField(doc, professionalKeys...),
		PaymentRef:              stringField(doc, paymentKeys...),
		Location:                extractLocation(doc),
		Source:                  stringField(doc, sourceKeys...),
	}
}

// ExtractRecords adapts a batch of documents, tagging each with source
// when the document does not name one.
func ExtractRecords(docs []model.GenericRecord, source string) []model.RawRecord {
	records := make([]model.RawRecord, 0, len(docs))
	for _, doc := range docs {
		rec := ExtractRecord(doc)
		if rec.Source == "" {
			rec.Source = source
		}
		records = append(records, rec)
	}
	return records
}

// ExtractTicket builds a support ticket from a provider document
func ExtractTicket(doc model.GenericRecord) model.SupportTicket {
	return model.SupportTicket{
		ID:        stringField(doc, idKeys...),
		Status:    extractStatus(doc),
		Category:  stringField(doc, ticketCategoryKeys...),
		Subject:   stringField(doc, ticketSubjectKeys...),
		CreatedAt: timeField(doc, createdAtKeys...),
	}
}

// ExtractTickets adapts a batch of ticket documents
func ExtractTickets(docs []model.GenericRecord) []model.SupportTicket {
	tickets := make([]model.SupportTicket, 0, len(docs))
	for _, doc := range docs {
		tickets = append(tickets, ExtractTicket(doc))
	}
	return tickets
}

// extractStatus reads the status keys, then the legacy "state" key when it
// holds a known status token. Any other "state" value is a location.
func extractStatus(doc model.GenericRecord) string {
	if status := stringField(doc, statusKeys...); status != "" {
		return status
	}
	if stateHoldsStatus(doc) {
		return stringField(doc, "state")
	}
	return ""
}

func stateHoldsStatus(doc model.GenericRecord) bool {
	if stringField(doc, statusKeys...) != "" {
		return false
	}
	state := stringField(doc, "state")
	if state == "" {
		return false
	}
	_, service := LookupStatus(state, model.DomainServiceRecord)
	_, ticket := LookupStatus(state, model.DomainSupportTicket)
	return service || ticket
}

func extractLocation(doc model.GenericRecord) model.Location {
	for _, key := range locationKeys {
		if nested, ok := asRecord(doc[key]); ok {
			loc := model.Location{
				City:  stringField(nested, cityKeys...),
				State: stringField(nested, stateKeys...),
			}
			if loc != (model.Location{}) {
				return loc
			}
		}
	}
	loc := model.Location{City: stringField(doc, cityKeys...)}
	if stateHoldsStatus(doc) {
		loc.State = stringField(doc, "estado", "uf")
	} else {
		loc.State = stringField(doc, stateKeys...)
	}
	return loc
}

func asRecord(v interface{}) (model.GenericRecord, bool) {
	switch m := v.(type) {
	case model.GenericRecord:
		return m, true
	case map[string]interface{}:
		return model.GenericRecord(m), true
	default:
		return nil, false
	}
}

// stringField returns the first non-empty value under keys, stringified
func stringField(doc model.GenericRecord, keys ...string) string {
	for _, key := range keys {
		v, ok := doc[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case fmt.Stringer:
			s = val.String()
		case int:
			s = strconv.Itoa(val)
		case int64:
			s = strconv.FormatInt(val, 10)
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case map[string]interface{}:
			// extended JSON {"$oid": "..."}
			if oid, ok := val["$oid"].(string); ok {
				s = oid
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// timeField returns the first parseable timestamp under keys
func timeField(doc model.GenericRecord, keys ...string) *time.Time {
	for _, key := range keys {
		if t, ok := utils.ParseTimestamp(doc[key]); ok {
			return &t
		}
	}
	return nil
}
