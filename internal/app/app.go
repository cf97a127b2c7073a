package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-funnel-metrics/internal/config"
	"go-funnel-metrics/internal/model"
	"go-funnel-metrics/internal/pipeline"
	"go-funnel-metrics/internal/provider"
	"go-funnel-metrics/internal/store"
	"go-funnel-metrics/pkg/utils"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// App wires configuration, providers, storage and the orchestrator
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Orchestrator *pipeline.Orchestrator
	Store        *store.Store
	Exporter     *pipeline.ExportManager

	closers []func(context.Context) error
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })

	var archive pipeline.Archive
	if cfg.Archive.Bucket != "" {
		s3Archive, err := store.NewS3Archive(ctx, store.ArchiveOptions{
			Bucket:       cfg.Archive.Bucket,
			Prefix:       cfg.Archive.Prefix,
			Region:       cfg.Archive.Region,
			Endpoint:     cfg.Archive.Endpoint,
			UsePathStyle: cfg.Archive.UsePathStyle,
		})
		if err != nil {
			logger.Warn("app: s3 archive disabled", zap.Error(err))
		} else {
			archive = s3Archive
		}
	}
	a.Exporter = pipeline.NewExportManager(utils.NewOutputManager(cfg.Export.OutputDir), st, archive, logger)

	sources, closers := BuildSources(ctx, cfg, logger)
	a.closers = append(a.closers, closers...)

	opts := pipeline.Options{
		WindowDays:    cfg.Report.WindowDays,
		BranchTimeout: cfg.Report.BranchTimeout,
		CacheTTL:      cfg.Report.CacheTTL,
		Workers:       cfg.Report.AggregationWorkers,
		MaxParallel:   cfg.Report.MaxParallelBranches,
		Strict:        cfg.Report.Strict,
		Thresholds:    cfg.Thresholds,
		Retry:         cfg.Retry,
		Now:           time.Now,
		Logger:        logger,
	}
	switch cfg.Store.Cache {
	case "sql":
		opts.Cache = st
		if n, err := st.PurgeExpired(ctx); err != nil {
			logger.Warn("app: purge cache", zap.Error(err))
		} else if n > 0 {
			logger.Info("app: purged expired cache entries", zap.Int64("entries", n))
		}
	case "none":
	default:
		opts.Cache = store.NewMemoryCache(nil)
	}

	orch, err := pipeline.NewOrchestrator(sources, opts)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Orchestrator = orch
	return a, nil
}

// BuildSources creates the configured providers. A file path overrides
// the network provider of the same source. Providers that fail to connect
// are replaced by provider.Unavailable so the report shows the error.
func BuildSources(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline.Sources, []func(context.Context) error) {
	var sources pipeline.Sources
	var closers []func(context.Context) error

	if cfg.Sources.Mongo.URI != "" {
		docs, err := provider.ConnectDocumentStore(ctx, provider.DocumentStoreOptions{
			URI:               cfg.Sources.Mongo.URI,
			Database:          cfg.Sources.Mongo.Database,
			RecordCollections: cfg.Sources.Mongo.RecordCollections,
			Tickets:           cfg.Sources.Mongo.Tickets,
			Feedback:          cfg.Sources.Mongo.Feedback,
			Professionals:     cfg.Sources.Mongo.Professionals,
		}, logger)
		if err != nil {
			logger.Warn("app: document store unavailable", zap.Error(err))
			down := provider.Unavailable{Err: err}
			sources.Records, sources.Tickets, sources.Feedback, sources.Profiles = down, down, down, down
		} else {
			sources.Records, sources.Tickets, sources.Feedback, sources.Profiles = docs, docs, docs, docs
			closers = append(closers, docs.Close)
		}
	}

	httpClient := &http.Client{Timeout: cfg.Report.BranchTimeout}
	if p := cfg.Sources.Payments; p.BaseURL != "" && p.APIKey != "" {
		sources.Payments = provider.NewPaymentClient(p.BaseURL, p.APIKey, httpClient)
	}
	if an := cfg.Sources.Analytics; an.BaseURL != "" && an.PropertyID != "" {
		sources.Traffic = provider.NewAnalyticsClient(an.BaseURL, an.PropertyID, an.Token, httpClient)
	}

	files := provider.NewFileSource(provider.FilePaths{
		Records:  cfg.Sources.Files.Records,
		Tickets:  cfg.Sources.Files.Tickets,
		Payments: cfg.Sources.Files.Payments,
		Feedback: cfg.Sources.Files.Feedback,
		Profiles: cfg.Sources.Files.Profiles,
	})
	if cfg.Sources.Files.Records != "" {
		sources.Records = files
	}
	if cfg.Sources.Files.Tickets != "" {
		sources.Tickets = files
	}
	if cfg.Sources.Files.Payments != "" {
		sources.Payments = files
	}
	if cfg.Sources.Files.Feedback != "" {
		sources.Feedback = files
	}
	if cfg.Sources.Files.Profiles != "" {
		sources.Profiles = files
	}
	return sources, closers
}

// Report runs the orchestrator and exports the result to the configured
// targets. A cached report was exported when it was built and is returned
// as is. Only an invalid request returns an error.
func (a *App) Report(ctx context.Context, req pipeline.ReportRequest) (model.Report, []model.ExportResult, error) {
	if err := pipeline.ValidateRequest(req); err != nil {
		return model.Report{}, nil, err
	}
	report := a.Orchestrator.Run(ctx, req)
	if report.Cached {
		a.Logger.Debug("app: cached report, exports skipped", zap.String("run_id", report.RunID))
		return report, nil, nil
	}

	exports := a.Exporter.Export(ctx, report, a.Config.Export.Targets)
	for _, res := range exports {
		if !res.Success {
			a.Logger.Warn("app: export failed",
				zap.String("run_id", report.RunID),
				zap.String("target", res.Type),
				zap.String("error", res.Error),
			)
		}
	}
	return report, exports, nil
}

// Close releases providers and storage in reverse order
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return eris.Wrap(errors.Join(errs...), "app: close")
}
