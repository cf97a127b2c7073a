package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/pkg/utils"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Export targets
const (
	ExportJSON     = "json"
	ExportCSV      = "csv"
	ExportDatabase = "database"
	ExportS3       = "s3"
)

// RunStore persists report runs
type RunStore interface {
	SaveRun(ctx context.Context, report model.Report) error
}

// Archive uploads a report document and returns where it landed
type Archive interface {
	PutReport(ctx context.Context, runID string, body []byte) (string, error)
}

// ExportManager writes a finished report to the configured targets
type ExportManager struct {
	output  *utils.OutputManager
	runs    RunStore
	archive Archive
	logger  *zap.Logger
}

// NewExportManager creates an export manager; any collaborator may be nil,
// in which case exporting to its target fails with a clear error.
func NewExportManager(output *utils.OutputManager, runs RunStore, archive Archive, logger *zap.Logger) *ExportManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportManager{output: output, runs: runs, archive: archive, logger: logger}
}

// Export writes report to every target and returns one result per target
func (em *ExportManager) Export(ctx context.Context, report model.Report, targets []string) []model.ExportResult {
	results := make([]model.ExportResult, 0, len(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			results = append(results, em.result(target, "", 0, ctx.Err()))
			continue
		}

		var res model.ExportResult
		switch strings.ToLower(strings.TrimSpace(target)) {
		case ExportJSON:
			res = em.exportToJSON(report)
		case ExportCSV:
			res = em.exportToCSV(report)
		case ExportDatabase:
			res = em.exportToDatabase(ctx, report)
		case ExportS3:
			res = em.exportToS3(ctx, report)
		default:
			res = em.result(target, "", 0, eris.Errorf("unknown export target: %s", target))
		}
		results = append(results, res)
	}
	return results
}

func (em *ExportManager) result(target, path string, count int, err error) model.ExportResult {
	res := model.ExportResult{
		Type:        target,
		Path:        path,
		RecordCount: count,
		Success:     err == nil,
		Timestamp:   time.Now(),
	}
	if err != nil {
		res.Error = err.Error()
		em.logger.Error("export: failed", zap.String("target", target), zap.Error(err))
	} else {
		em.logger.Info("export: done",
			zap.String("target", target),
			zap.String("path", path),
			zap.Int("records", count),
		)
	}
	return res
}

func (em *ExportManager) exportToJSON(report model.Report) model.ExportResult {
	if em.output == nil {
		return em.result(ExportJSON, "", 0, eris.New("no output directory configured"))
	}
	path, size, err := em.output.WriteRunFile(report.RunID, "report.json", func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return eris.Wrap(encoder.Encode(report), "encode report")
	})
	if err != nil {
		return em.result(ExportJSON, path, 0, err)
	}
	em.logger.Debug("export: wrote file", zap.String("path", path), zap.Int64("bytes", size))
	return em.result(ExportJSON, path, len(report.Stages), nil)
}

// stageHeader is the column layout of the CSV stage table
var stageHeader = []string{
	"stage_id", "label", "count", "average_dwell_hours", "cumulative_dwell_hours",
	"dwell_sample_size", "conversion_from_previous", "drop_off_count", "available", "missing_reason",
}

func (em *ExportManager) exportToCSV(report model.Report) model.ExportResult {
	if em.output == nil {
		return em.result(ExportCSV, "", 0, eris.New("no output directory configured"))
	}

	rows := 0
	path, size, err := em.output.WriteRunFile(report.RunID, "stages.csv", func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(stageHeader); err != nil {
			return eris.Wrap(err, "write header")
		}
		for _, s := range report.Stages {
			row := []string{
				string(s.ID),
				s.Label,
				strconv.Itoa(s.Count),
				formatFloat(s.AverageDwellHours),
				formatFloat(s.CumulativeDwellHours),
				strconv.Itoa(s.DwellSampleSize),
				formatOptionalFloat(s.ConversionFromPrevious),
				formatOptionalInt(s.DropOffCount),
				strconv.FormatBool(s.Available),
				s.MissingReason,
			}
			if err := writer.Write(row); err != nil {
				return eris.Wrap(err, "write row")
			}
			rows++
		}
		writer.Flush()
		return eris.Wrap(writer.Error(), "flush stage file")
	})
	if err != nil {
		return em.result(ExportCSV, path, 0, err)
	}
	em.logger.Debug("export: wrote file", zap.String("path", path), zap.Int64("bytes", size))
	return em.result(ExportCSV, path, rows, nil)
}

func (em *ExportManager) exportToDatabase(ctx context.Context, report model.Report) model.ExportResult {
	if em.runs == nil {
		return em.result(ExportDatabase, "report_runs", 0, eris.New("no run store configured"))
	}
	if err := em.runs.SaveRun(ctx, report); err != nil {
		return em.result(ExportDatabase, "report_runs", 0, err)
	}
	return em.result(ExportDatabase, "report_runs", 1, nil)
}

func (em *ExportManager) exportToS3(ctx context.Context, report model.Report) model.ExportResult {
	if em.archive == nil {
		return em.result(ExportS3, "", 0, eris.New("no archive configured"))
	}
	body, err := json.Marshal(report)
	if err != nil {
		return em.result(ExportS3, "", 0, eris.Wrap(err, "encode report"))
	}
	key, err := em.archive.PutReport(ctx, report.RunID, body)
	if err != nil {
		return em.result(ExportS3, key, 0, err)
	}
	return em.result(ExportS3, key, 1, nil)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
