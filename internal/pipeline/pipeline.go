package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/google/uuid"
)

// TableSource reads the historical census table.
type TableSource interface {
	LoadTable(ctx context.Context) (domain.Table, error)
}

// Loader writes a finished forecast to one destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, f domain.Forecast) error
}

// Forecaster orchestrates one load-generate-publish run.
type Forecaster struct {
	source   TableSource
	synth    *domain.Synthesizer
	loaders  []Loader
	logger   *slog.Logger
	metrics  *observability.Metrics
	years    int
	lastYear int

	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
	newRunID   func() string

	latest atomic.Pointer[domain.Forecast]
	ready  atomic.Bool
}

// Option configures a Forecaster.
type Option func(*Forecaster)

// WithLoadRetry retries a failing loader up to attempts times in total,
// doubling the delay from initial up to 5s.
func WithLoadRetry(attempts int, initial time.Duration) Option {
	return func(f *Forecaster) {
		if attempts > 0 {
			f.attempts = attempts
		}
		f.backoff = initial
	}
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(f *Forecaster) {
		if fn != nil {
			f.newRunID = fn
		}
	}
}

// New creates a Forecaster that synthesizes years lastYear+1 .. lastYear+years.
func New(source TableSource, synth *domain.Synthesizer, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, years, lastYear int, opts ...Option) *Forecaster {
	f := &Forecaster{
		source:     source,
		synth:      synth,
		loaders:    loaders,
		logger:     logger,
		metrics:    metrics,
		years:      years,
		lastYear:   lastYear,
		attempts:   3,
		backoff:    200 * time.Millisecond,
		maxBackoff: 5 * time.Second,
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CheckReadiness returns nil once a forecast has completed, or an error
// describing why the service is not yet ready.
func (f *Forecaster) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("no forecast has completed yet")
	}
	return nil
}

// Latest returns the most recent successful forecast.
func (f *Forecaster) Latest() (domain.Forecast, bool) {
	p := f.latest.Load()
	if p == nil {
		return domain.Forecast{}, false
	}
	return *p, true
}

// Run loads the table, generates the horizon, and hands the result to every
// loader. A loader failure does not stop the others; all failures are
// returned together after the forecast itself has been kept.
func (f *Forecaster) Run(ctx context.Context) (domain.Forecast, error) {
	f.metrics.ForecastRunning.Set(1)
	defer f.metrics.ForecastRunning.Set(0)
	start := time.Now()

	table, err := f.source.LoadTable(ctx)
	if err != nil {
		f.metrics.ForecastErrors.Inc()
		return domain.Forecast{}, fmt.Errorf("load table: %w", err)
	}
	f.metrics.ObservationsLoaded.Add(float64(table.Len()))

	runID := f.newRunID()
	f.logger.Info("forecast started",
		"run_id", runID,
		"rows", table.Len(),
		"last_year", f.lastYear,
		"years", f.years,
	)

	forecast, err := f.synth.Forecast(ctx, table, f.years, f.lastYear)
	if err != nil {
		f.metrics.ForecastErrors.Inc()
		f.logger.Error("forecast failed", "run_id", runID, "error", err)
		return domain.Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	forecast.RunID = runID

	synthetic := len(forecast.Synthetic())
	f.metrics.ObservationsSynthesized.Add(float64(synthetic))
	f.metrics.YearsSynthesized.Add(float64(f.years))
	f.metrics.ForecastDuration.Observe(time.Since(start).Seconds())

	f.latest.Store(&forecast)
	f.ready.Store(true)

	var loadErrs []error
	for _, l := range f.loaders {
		if err := f.load(ctx, l, forecast); err != nil {
			f.metrics.SinkErrors.WithLabelValues(l.Name()).Inc()
			f.logger.Error("load forecast failed", "sink", l.Name(), "run_id", runID, "error", err)
			loadErrs = append(loadErrs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}

	f.logger.Info("forecast finished",
		"run_id", runID,
		"synthetic_rows", synthetic,
		"duration", time.Since(start),
	)
	return forecast, errors.Join(loadErrs...)
}

// load calls l until it succeeds, the attempts run out, or ctx ends.
func (f *Forecaster) load(ctx context.Context, l Loader, forecast domain.Forecast) error {
	backoff := f.backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = l.Load(ctx, forecast); err == nil {
			return nil
		}
		if attempt >= f.attempts || ctx.Err() != nil {
			return err
		}
		f.logger.Warn("load forecast retrying", "sink", l.Name(), "attempt", attempt, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return err
		}
		backoff = nextBackoff(backoff, f.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
