package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-funnel-metrics/internal/app"
	"go-funnel-metrics/internal/config"
	"go-funnel-metrics/internal/logging"
	"go-funnel-metrics/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("FUNNEL_CONFIG"), "path to the YAML config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	branchTimeout := flag.String("branch-timeout", "", "per-source fetch timeout, e.g. 5s (overrides report.branch_timeout)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	cfg.Report.BranchTimeout = utils.ParseDuration(*branchTimeout, cfg.Report.BranchTimeout)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	if err := a.Serve(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
