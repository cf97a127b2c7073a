package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-funnel-metrics/internal/api/handler"
	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"
	"go-funnel-metrics/internal/store"
	"go-funnel-metrics/pkg/router"

	"github.com/stretchr/testify/assert"
)

type stubReports struct{}

func (stubReports) Report(context.Context, pipeline.ReportRequest) (model.Report, []model.ExportResult, error) {
	return model.Report{RunID: "run-1"}, nil, nil
}

type stubRuns struct{}

func (stubRuns) ListRuns(context.Context, int) ([]store.RunSummary, error) { return nil, nil }
func (stubRuns) GetRun(context.Context, string) (model.Report, error) {
	return model.Report{}, store.ErrRunNotFound
}
func (stubRuns) BranchErrors(context.Context, string) ([]store.BranchError, error) { return nil, nil }
func (stubRuns) Ping(context.Context) error                                       { return nil }

func TestRegisterRoutes(t *testing.T) {
	r := router.New(nil)
	RegisterRoutes(r, handler.New(stubReports{}, stubRuns{}, nil))

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/v1/reports/funnel", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/alerts", http.StatusOK},
		{http.MethodGet, "/api/v1/runs", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/run-9", http.StatusNotFound},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/api/v1/reports/funnel", http.StatusMethodNotAllowed},
		{http.MethodGet, "/swagger/doc.json", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}
