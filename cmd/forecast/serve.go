package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/census-forecast/internal/adapter/http"
	"github.com/couchcryptid/census-forecast/internal/config"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run one forecast, then serve it over HTTP",
		Long: `Starts the HTTP server (/healthz, /readyz, /metrics, /observations), runs one
forecast, and keeps serving the result until SIGINT or SIGTERM. /readyz
reports ready once the forecast has completed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := observability.NewLogger(cfg)
			a, err := newApp(ctx, cfg, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer a.close()

			srv := httpadapter.NewServer(cfg.HTTPAddr, a.readyChecker(), a.forecaster, logger)

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
				}
			}()

			// Run the forecast.
			go func() {
				if _, err := a.forecaster.Run(ctx); err != nil {
					logger.Error("forecast error", "error", err)
				}
			}()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}
