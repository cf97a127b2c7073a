package pipeline

import (
	"strings"

	"go-funnel-metrics/internal/model"
)

// CleanRecord returns a copy of doc with string values trimmed and nil or
// blank values removed, so the adapter's candidate-key scan skips them.
func CleanRecord(doc model.GenericRecord) model.GenericRecord {
	result := make(model.GenericRecord, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			trimmed := strings.TrimSpace(val)
			if trimmed == "" {
				continue
			}
			result[k] = trimmed
		case map[string]interface{}:
			result[k] = map[string]interface{}(CleanRecord(model.GenericRecord(val)))
		default:
			result[k] = v
		}
	}
	return result
}

// CleanRecords applies CleanRecord to every document
func CleanRecords(docs []model.GenericRecord) []model.GenericRecord {
	cleaned := make([]model.GenericRecord, 0, len(docs))
	for _, doc := range docs {
		cleaned = append(cleaned, CleanRecord(doc))
	}
	return cleaned
}

// MatchesLocation reports whether a record falls inside the filter.
// Empty filter fields match everything; comparison ignores case and accents.
func MatchesLocation(loc model.Location, filter model.ReportFilter) bool {
	if filter.City != "" && foldToken(loc.City) != foldToken(filter.City) {
		return false
	}
	if filter.State != "" && foldToken(loc.State) != foldToken(filter.State) {
		return false
	}
	return true
}

// FilterByLocation keeps the records matching filter
func FilterByLocation(records []model.RawRecord, filter model.ReportFilter) []model.RawRecord {
	if filter.City == "" && filter.State == "" {
		return records
	}
	kept := make([]model.RawRecord, 0, len(records))
	for _, rec := range records {
		if MatchesLocation(rec.Location, filter) {
			kept = append(kept, rec)
		}
	}
	return kept
}
