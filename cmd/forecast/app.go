package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/census-forecast/internal/adapter/csvtable"
	kafkaadapter "github.com/couchcryptid/census-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/census-forecast/internal/adapter/postgres"
	"github.com/couchcryptid/census-forecast/internal/config"
	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/model"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/couchcryptid/census-forecast/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// app holds the wired forecaster and the resources to release on exit.
type app struct {
	forecaster *pipeline.Forecaster
	closers    []func()
	// dependencies checked by /readyz besides the forecaster itself
	deps readiness
}

// readiness reports ready only when every checker does.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// readyChecker returns the checker served on /readyz.
func (a *app) readyChecker() sharedobs.ReadinessChecker {
	return append(readiness{a.forecaster}, a.deps...)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	catalog, err := domain.NewCatalog(cfg.Species, cfg.Strata)
	if err != nil {
		return nil, err
	}

	bundle, err := model.LoadBundle(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	caps, err := bundle.Capabilities(catalog)
	if err != nil {
		return nil, fmt.Errorf("model bundle %s: %w", cfg.ModelPath, err)
	}
	caps, err = model.Decorate(caps, cfg.PredictionCacheSize, metrics)
	if err != nil {
		return nil, err
	}

	synth, err := domain.NewSynthesizer(catalog, caps,
		domain.WithWorkers(cfg.Workers),
		domain.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a := &app{}
	var loaders []pipeline.Loader

	if cfg.OutputPath != "" {
		loaders = append(loaders, csvtable.NewWriter(cfg.OutputPath, catalog, logger))
	}
	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		a.closers = append(a.closers, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
		loaders = append(loaders, w)
	}
	if cfg.PostgresDSN != "" {
		w, err := postgres.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, w.Close)
		if err := w.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		a.deps = append(a.deps, w)
		loaders = append(loaders, w)
	}
	if len(loaders) == 0 {
		logger.Warn("no sinks configured, forecast is only kept in memory")
	}

	source := csvtable.NewReader(cfg.InputPath, catalog, logger)
	a.forecaster = pipeline.New(source, synth, loaders, logger, metrics, cfg.Years, cfg.LastYear)

	logger.Info("forecaster configured",
		"species", len(catalog.Species),
		"strata", len(catalog.Strata),
		"years", cfg.Years,
		"last_year", cfg.LastYear,
		"workers", cfg.Workers,
		"cache_size", cfg.PredictionCacheSize,
		"sinks", len(loaders),
	)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
