package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-funnel-metrics/internal/config"
	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	records := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(records, []byte(`[
		{"id":"r1","status":"pending"},
		{"id":"r2","status":"pendente"},
		{"id":"r3","status":"matched","professionalId":"p1"},
		{"id":"r4","status":"cancelado"}
	]`), 0644))

	cfg := config.DefaultConfig()
	cfg.Store.DSN = filepath.Join(dir, "funnel.db")
	cfg.Store.Cache = "none"
	cfg.Sources.Analytics.BaseURL = ""
	cfg.Sources.Files.Records = records
	cfg.Export.OutputDir = filepath.Join(dir, "exports")
	cfg.Export.Targets = []string{"database", "json"}
	cfg.Report.BranchTimeout = 2 * time.Second
	return cfg
}

func TestApp_Report(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close(ctx)

	report, exports, err := a.Report(ctx, pipeline.ReportRequest{WindowDays: 7})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	assert.Equal(t, 7, report.WindowDays)

	intake, ok := report.Funnel().Stage(model.StageIntake)
	require.True(t, ok)
	assert.Equal(t, 2, intake.Count)

	statuses := map[model.SourceName]model.SourceStatus{}
	for _, s := range report.Sources {
		statuses[s.Source] = s
	}
	assert.True(t, statuses[model.SourceRecords].Available)
	assert.Equal(t, 4, statuses[model.SourceRecords].Records)
	assert.False(t, statuses[model.SourceTraffic].Available)
	assert.Equal(t, model.ReasonNotConfigured, statuses[model.SourceTraffic].MissingReason)

	require.Len(t, exports, 2)
	for _, res := range exports {
		assert.True(t, res.Success, "%s: %s", res.Type, res.Error)
	}

	stored, err := a.Store.GetRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, stored.RunID)
}

func TestApp_ReportRejectsInvalidWindow(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	_, _, err = a.Report(ctx, pipeline.ReportRequest{WindowDays: 1000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidRequest))
}

func TestBuildSources_UnconfiguredLeavesNil(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources.Analytics.BaseURL = ""
	sources, closers := BuildSources(context.Background(), cfg, nil)

	assert.Nil(t, sources.Records)
	assert.Nil(t, sources.Payments)
	assert.Nil(t, sources.Traffic)
	assert.Empty(t, closers)

	cfg.Sources.Payments.BaseURL = "https://api.payments.test"
	cfg.Sources.Payments.APIKey = "sk_test"
	cfg.Sources.Files.Profiles = "profiles.json"
	sources, _ = BuildSources(context.Background(), cfg, nil)
	assert.NotNil(t, sources.Payments)
	assert.NotNil(t, sources.Profiles)
}

func TestApp_RouterServesHealth(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = "127.0.0.1:0"
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestApp_SQLCacheServesRepeatRequests(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Cache = "sql"
	cfg.Export.Targets = []string{"database"}

	ctx := context.Background()
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	first, exports, err := a.Report(ctx, pipeline.ReportRequest{})
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.False(t, first.Cached)

	second, exports, err := a.Report(ctx, pipeline.ReportRequest{})
	require.NoError(t, err)
	assert.Empty(t, exports)
	assert.True(t, second.Cached)
	assert.True(t, first.Timestamp.Equal(second.Timestamp))
	assert.Equal(t, first.RunID, second.RunID)

	runs, err := a.Store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first.RunID, runs[0].ID)
}
