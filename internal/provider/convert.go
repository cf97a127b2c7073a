package provider

import (
	"fmt"
	"strings"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/pkg/utils"
)

func firstString(doc model.GenericRecord, keys ...string) string {
	for _, key := range keys {
		switch v := doc[key].(type) {
		case nil:
			continue
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		default:
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstBool(doc model.GenericRecord, keys ...string) bool {
	for _, key := range keys {
		switch v := doc[key].(type) {
		case bool:
			return v
		case string:
			return strings.EqualFold(v, "true") || v == "1"
		default:
			if utils.IsNumeric(v) {
				return utils.Numeric(v) != 0
			}
		}
	}
	return false
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(list, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return nil
	}
}

// FeedbackFromRecord maps a feedback document to a rating. Five-point
// ratings are rescaled to the 0-10 scale.
func FeedbackFromRecord(doc model.GenericRecord) model.Feedback {
	f := model.Feedback{
		ID:      firstString(doc, "id", "_id"),
		JobRef:  firstString(doc, "jobRef", "jobId", "serviceRequestId"),
		Comment: firstString(doc, "comment", "comentario"),
	}
	if v, ok := doc["score"]; ok {
		f.Score = utils.Numeric(v)
	} else if v, ok := doc["rating"]; ok {
		f.Score = utils.Numeric(v) * 2
	} else if v, ok := doc["nota"]; ok {
		f.Score = utils.Numeric(v)
	}
	for _, key := range []string{"createdAt", "created_at", "dataCriacao"} {
		if t, ok := utils.ParseTimestamp(doc[key]); ok {
			f.CreatedAt = t
			break
		}
	}
	return f
}

// ProfileFromRecord maps a professional document to a profile
func ProfileFromRecord(doc model.GenericRecord) model.ProfessionalProfile {
	categories := stringList(doc["categories"])
	if len(categories) == 0 {
		categories = stringList(doc["categorias"])
	}
	return model.ProfessionalProfile{
		ID:               firstString(doc, "id", "_id"),
		Name:             firstString(doc, "name", "nome"),
		Bio:              firstString(doc, "bio", "descricao"),
		PhotoURL:         firstString(doc, "photoUrl", "avatarUrl", "foto"),
		Phone:            firstString(doc, "phone", "telefone", "whatsapp"),
		Categories:       categories,
		DocumentVerified: firstBool(doc, "documentVerified", "documentoVerificado", "verified"),
	}
}
