package provider

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"
	"go-funnel-metrics/pkg/utils"

	"github.com/rotisserie/eris"
)

// FilePaths point at offline snapshots, one file per source. Empty paths
// leave the source unconfigured.
type FilePaths struct {
	Records  string
	Tickets  string
	Payments string
	Feedback string
	Profiles string
}

// FileSource serves provider data from local JSON or CSV exports
type FileSource struct {
	paths FilePaths
}

// NewFileSource creates a file-backed source
func NewFileSource(paths FilePaths) *FileSource {
	return &FileSource{paths: paths}
}

// FetchRecords reads the records snapshot, keeping documents inside q
func (f *FileSource) FetchRecords(ctx context.Context, q pipeline.Query) ([]model.GenericRecord, error) {
	docs, err := ReadDocuments(ctx, f.paths.Records)
	if err != nil {
		return nil, err
	}
	return inWindow(docs, q), nil
}

// FetchTickets reads the tickets snapshot, keeping documents inside q
func (f *FileSource) FetchTickets(ctx context.Context, q pipeline.Query) ([]model.GenericRecord, error) {
	docs, err := ReadDocuments(ctx, f.paths.Tickets)
	if err != nil {
		return nil, err
	}
	return inWindow(docs, q), nil
}

// FetchPayments reads the payments snapshot
func (f *FileSource) FetchPayments(ctx context.Context, q pipeline.Query) ([]model.PaymentTransaction, error) {
	docs, err := ReadDocuments(ctx, f.paths.Payments)
	if err != nil {
		return nil, err
	}
	out := make([]model.PaymentTransaction, 0, len(docs))
	for _, doc := range docs {
		p := model.PaymentTransaction{
			ID:       firstString(doc, "id", "_id"),
			Status:   strings.ToLower(firstString(doc, "status")),
			Amount:   int64(utils.Numeric(doc["amount"])),
			Currency: firstString(doc, "currency"),
			JobRef:   firstString(doc, "jobRef", "jobId"),
		}
		for _, key := range []string{"created", "createdAt", "created_at"} {
			if t, ok := utils.ParseTimestamp(doc[key]); ok {
				p.CreatedAt = t
				break
			}
		}
		if p.CreatedAt.Before(q.Since) || p.CreatedAt.After(q.Until) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// FetchFeedback reads the feedback snapshot
func (f *FileSource) FetchFeedback(ctx context.Context, q pipeline.Query) ([]model.Feedback, error) {
	docs, err := ReadDocuments(ctx, f.paths.Feedback)
	if err != nil {
		return nil, err
	}
	out := make([]model.Feedback, 0, len(docs))
	for _, doc := range docs {
		fb := FeedbackFromRecord(doc)
		if fb.CreatedAt.Before(q.Since) || fb.CreatedAt.After(q.Until) {
			continue
		}
		out = append(out, fb)
	}
	return out, nil
}

// FetchProfiles reads the profiles snapshot
func (f *FileSource) FetchProfiles(ctx context.Context) ([]model.ProfessionalProfile, error) {
	docs, err := ReadDocuments(ctx, f.paths.Profiles)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProfessionalProfile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ProfileFromRecord(doc))
	}
	return out, nil
}

// inWindow keeps documents created inside q. Documents without a creation
// timestamp are kept, the funnel reports them with unknown dwell.
func inWindow(docs []model.GenericRecord, q pipeline.Query) []model.GenericRecord {
	kept := make([]model.GenericRecord, 0, len(docs))
	for _, doc := range docs {
		created, ok := createdAt(doc)
		if ok && (created.Before(q.Since) || created.After(q.Until)) {
			continue
		}
		kept = append(kept, doc)
	}
	return kept
}

func createdAt(doc model.GenericRecord) (time.Time, bool) {
	for _, key := range creationKeys {
		if ts, found := utils.ParseTimestamp(doc[key]); found {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ReadDocuments loads a JSON array/object or a CSV file with a header row
func ReadDocuments(ctx context.Context, path string) ([]model.GenericRecord, error) {
	if path == "" {
		return nil, eris.Wrap(pipeline.ErrSourceNotConfigured, "file source: no path")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "file source: open %s", path)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(ctx, file, path)
	default:
		return readJSON(file, path)
	}
}

func readCSV(ctx context.Context, r io.Reader, path string) ([]model.GenericRecord, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	headers, err := csvReader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "file source: read CSV header of %s", path)
	}
	for i, h := range headers {
		// Clean header names: trim whitespace and remove ALL quotes
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	var docs []model.GenericRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "file source: read CSV %s", path)
		}

		doc := make(model.GenericRecord, len(headers))
		for i, h := range headers {
			if i >= len(row) || h == "" {
				continue
			}
			// identifiers stay strings so leading zeros survive
			if isReferenceColumn(h) {
				doc[h] = strings.TrimSpace(row[i])
				continue
			}
			doc[h] = utils.ParseValue(row[i])
		}
		doc["SourceURL"] = path
		docs = append(docs, doc)
	}
}

func isReferenceColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, "id") || strings.HasSuffix(lower, "ref")
}

func readJSON(r io.Reader, path string) ([]model.GenericRecord, error) {
	var raw interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrapf(err, "file source: decode JSON %s", path)
	}

	switch data := raw.(type) {
	case []interface{}:
		docs := make([]model.GenericRecord, 0, len(data))
		for _, item := range data {
			if m, ok := item.(map[string]interface{}); ok {
				m["SourceURL"] = path
				docs = append(docs, model.GenericRecord(m))
			}
		}
		return docs, nil
	case map[string]interface{}:
		// {"data": [...]} envelopes are common in API dumps
		if inner, ok := data["data"].([]interface{}); ok {
			docs := make([]model.GenericRecord, 0, len(inner))
			for _, item := range inner {
				if m, ok := item.(map[string]interface{}); ok {
					m["SourceURL"] = path
					docs = append(docs, model.GenericRecord(m))
				}
			}
			return docs, nil
		}
		data["SourceURL"] = path
		return []model.GenericRecord{model.GenericRecord(data)}, nil
	default:
		return nil, eris.Errorf("file source: unexpected JSON structure in %s", path)
	}
}
