package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-funnel-metrics/internal/api"
	"go-funnel-metrics/internal/api/handler"
	"go-funnel-metrics/pkg/router"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Router returns the routes of the reporting API
func (a *App) Router() *router.Router {
	r := router.New(a.Logger)
	api.RegisterRoutes(r, handler.New(a, a.Store, a.Logger))
	return r
}

// Serve runs the API until ctx is cancelled, then drains in-flight requests
func (a *App) Serve(ctx context.Context) error {
	srv := a.Router().Server(a.Config.Server.Addr, a.Config.Server.ReadTimeout, a.Config.Server.WriteTimeout)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server: listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	a.Logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
