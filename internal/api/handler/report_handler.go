package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"
	"go-funnel-metrics/internal/store"

	"go.uber.org/zap"
)

// ReportService produces reports
type ReportService interface {
	Report(ctx context.Context, req pipeline.ReportRequest) (model.Report, []model.ExportResult, error)
}

// RunHistory reads persisted runs
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	GetRun(ctx context.Context, id string) (model.Report, error)
	BranchErrors(ctx context.Context, runID string) ([]store.BranchError, error)
	Ping(ctx context.Context) error
}

// Handler serves the reporting API
type Handler struct {
	reports ReportService
	runs    RunHistory
	logger  *zap.Logger
}

// New creates a handler
func New(reports ReportService, runs RunHistory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reports: reports, runs: runs, logger: logger}
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// AlertsResponse is the body of the alerts endpoint
type AlertsResponse struct {
	RunID       string             `json:"runId"`
	WindowDays  int                `json:"windowDays"`
	Alerts      []model.Alert      `json:"alerts"`
	AlertChecks []model.AlertCheck `json:"alertChecks"`
	Timestamp   time.Time          `json:"timestamp"`
}

// RunResponse is a stored run with its branch failures
type RunResponse struct {
	Report       model.Report        `json:"report"`
	BranchErrors []store.BranchError `json:"branchErrors"`
}

// GetFunnelReport builds the executive funnel report
// @Summary Funnel report
// @Description Build the conversion funnel, bottlenecks and alerts for a trailing window. Unavailable providers are flagged, never omitted.
// @Tags reports
// @Produce json
// @Param windowDays query int false "Trailing window in days (default 30)"
// @Param city query string false "City filter"
// @Param state query string false "State filter"
// @Param refresh query bool false "Bypass the response cache"
// @Success 200 {object} model.Report
// @Failure 400 {object} ErrorResponse
// @Router /reports/funnel [get]
func (h *Handler) GetFunnelReport(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, _, err := h.reports.Report(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetAlerts returns only the alert section of a fresh report
// @Summary Operational alerts
// @Description Evaluate every alert check for a trailing window
// @Tags reports
// @Produce json
// @Param windowDays query int false "Trailing window in days (default 30)"
// @Param city query string false "City filter"
// @Param state query string false "State filter"
// @Param refresh query bool false "Bypass the response cache"
// @Success 200 {object} AlertsResponse
// @Failure 400 {object} ErrorResponse
// @Router /reports/alerts [get]
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, _, err := h.reports.Report(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AlertsResponse{
		RunID:       report.RunID,
		WindowDays:  report.WindowDays,
		Alerts:      report.Alerts,
		AlertChecks: report.AlertChecks,
		Timestamp:   report.Timestamp,
	})
}

// ListRuns lists persisted report runs
// @Summary List runs
// @Description List persisted report runs, newest first
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {array} store.RunSummary
// @Failure 500 {object} ErrorResponse
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("handler: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns a persisted report run
// @Summary Get run
// @Description Fetch a persisted report with its branch errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} RunResponse
// @Failure 404 {object} ErrorResponse
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/runs/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	runID := strings.Trim(r.URL.Path[len(prefix):], "/")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	report, err := h.runs.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("handler: get run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	branchErrors, err := h.runs.BranchErrors(r.Context(), runID)
	if err != nil {
		h.logger.Error("handler: branch errors", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Report: report, BranchErrors: branchErrors})
}

// Health reports whether the run store is reachable
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} ErrorResponse
// @Router /healthz [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.runs != nil {
		if err := h.runs.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("handler: report", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to build report")
}

func parseReportRequest(r *http.Request) (pipeline.ReportRequest, error) {
	q := r.URL.Query()
	req := pipeline.ReportRequest{
		Filter: model.ReportFilter{
			City:  strings.TrimSpace(q.Get("city")),
			State: strings.TrimSpace(q.Get("state")),
		},
	}
	if raw := q.Get("windowDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.New("windowDays must be an integer")
		}
		req.WindowDays = n
	}
	if raw := q.Get("refresh"); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			return req, errors.New("refresh must be a boolean")
		}
		req.SkipCache = refresh
	}
	return req, pipeline.ValidateRequest(req)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
