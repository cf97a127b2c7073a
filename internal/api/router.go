package api

import (
	"net/http"

	"go-funnel-metrics/internal/api/handler"
	"go-funnel-metrics/pkg/router"

	_ "go-funnel-metrics/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Funnel Metrics API
// @version 1.0
// @description Conversion funnel, bottleneck and alert reporting for the service marketplace.
// @BasePath /api/v1

// RegisterRoutes mounts the API on r
func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/api/v1/reports/funnel", h.GetFunnelReport)
	r.GET("/api/v1/reports/alerts", h.GetAlerts)
	r.GET("/api/v1/runs", h.ListRuns)
	r.GET("/api/v1/runs/*", h.GetRun)
	r.GET("/healthz", h.Health)
	r.Handle(http.MethodGet, "/swagger/*", httpSwagger.WrapHandler)
}
