package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/couchcryptid/census-forecast/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSource struct {
	table domain.Table
	err   error
}

func (m *mockSource) LoadTable(_ context.Context) (domain.Table, error) {
	return m.table, m.err
}

type mockLoader struct {
	name     string
	failures int // number of calls that fail before succeeding
	calls    int
	loaded   []domain.Forecast
}

func (m *mockLoader) Name() string { return m.name }

func (m *mockLoader) Load(_ context.Context, f domain.Forecast) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, f)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

var catalog = domain.Catalog{Species: []string{"elephant", "zebra"}}

func historical() domain.Table {
	return domain.NewTable([]domain.Observation{
		{ID: 1, SurveyYear: 2022, Month: 9, Species: "elephant", Count: domain.Float(10), Latitude: domain.Float(-20.1), Longitude: domain.Float(31.2)},
		{ID: 2, SurveyYear: 2022, Month: 9, Species: "zebra", Count: domain.Float(40), Latitude: domain.Float(-20.5), Longitude: domain.Float(31.0)},
	})
}

// lagCaps predicts every target as its own lag1 plus one.
func lagCaps() domain.Capabilities {
	lag := func(i int) domain.Regressor {
		return domain.RegressorFunc(func(_ context.Context, f []float64) (float64, error) {
			return f[i] + 1, nil
		})
	}
	return domain.Capabilities{
		domain.TargetCount:     lag(7),
		domain.TargetLatitude:  lag(5),
		domain.TargetLongitude: lag(6),
	}
}

func newSynthesizer(t *testing.T, caps domain.Capabilities) *domain.Synthesizer {
	t.Helper()
	s, err := domain.NewSynthesizer(catalog, caps)
	require.NoError(t, err)
	return s
}

func fixedRunID() string { return "run-1" }

// --- tests ---

func TestForecaster_Run_HappyPath(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})

	csv := &mockLoader{name: "csv"}
	kafka := &mockLoader{name: "kafka"}
	metrics := newTestMetrics()

	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, lagCaps()),
		[]pipeline.Loader{csv, kafka}, slog.Default(), metrics, 2, 2022, pipeline.WithRunID(fixedRunID))

	require.Error(t, f.CheckReadiness(context.Background()))
	_, ok := f.Latest()
	require.False(t, ok)

	got, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, fakeClock.Now(), got.GeneratedAt)
	assert.Equal(t, 2, got.BaseRows)
	assert.Equal(t, 6, got.Table.Len())
	assert.Len(t, got.Synthetic(), 4)

	require.Len(t, csv.loaded, 1)
	require.Len(t, kafka.loaded, 1)
	assert.Equal(t, "run-1", kafka.loaded[0].RunID)

	require.NoError(t, f.CheckReadiness(context.Background()))
	latest, ok := f.Latest()
	require.True(t, ok)
	if diff := cmp.Diff(got.Table.Rows(), latest.Table.Rows()); diff != "" {
		t.Errorf("latest forecast mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ObservationsLoaded))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.ObservationsSynthesized))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.YearsSynthesized))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ForecastRunning))
	assert.Zero(t, testutil.ToFloat64(metrics.ForecastErrors))
}

func TestForecaster_Run_SourceError(t *testing.T) {
	ldr := &mockLoader{name: "csv"}
	metrics := newTestMetrics()

	f := pipeline.New(&mockSource{err: errors.New("no such file")}, newSynthesizer(t, lagCaps()),
		[]pipeline.Loader{ldr}, slog.Default(), metrics, 1, 2022)

	_, err := f.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load table")
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ForecastErrors))
	require.Error(t, f.CheckReadiness(context.Background()))
}

func TestForecaster_Run_PredictionErrorPublishesNothing(t *testing.T) {
	caps := lagCaps()
	caps[domain.TargetLatitude] = domain.RegressorFunc(func(context.Context, []float64) (float64, error) {
		return 0, errors.New("model not fitted")
	})
	ldr := &mockLoader{name: "kafka"}
	metrics := newTestMetrics()

	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, caps),
		[]pipeline.Loader{ldr}, slog.Default(), metrics, 1, 2022)

	_, err := f.Run(context.Background())
	var predErr *domain.PredictionError
	require.ErrorAs(t, err, &predErr)
	assert.Equal(t, domain.TargetLatitude, predErr.Field)
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ForecastErrors))
	_, ok := f.Latest()
	assert.False(t, ok)
}

func TestForecaster_Run_RetriesLoader(t *testing.T) {
	flaky := &mockLoader{name: "postgres", failures: 2}
	metrics := newTestMetrics()

	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, lagCaps()),
		[]pipeline.Loader{flaky}, slog.Default(), metrics, 1, 2022,
		pipeline.WithLoadRetry(3, time.Millisecond))

	_, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	require.Len(t, flaky.loaded, 1)
	assert.Zero(t, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("postgres")))
}

func TestForecaster_Run_LoaderFailureDoesNotStopOthers(t *testing.T) {
	broken := &mockLoader{name: "kafka", failures: 100}
	healthy := &mockLoader{name: "csv"}
	metrics := newTestMetrics()

	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, lagCaps()),
		[]pipeline.Loader{broken, healthy}, slog.Default(), metrics, 1, 2022,
		pipeline.WithLoadRetry(2, 0))

	got, err := f.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: sink unavailable")
	assert.Equal(t, 2, broken.calls)
	require.Len(t, healthy.loaded, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("kafka")))

	// The forecast itself succeeded and is served.
	assert.Len(t, got.Synthetic(), 2)
	require.NoError(t, f.CheckReadiness(context.Background()))
}

func TestForecaster_Run_ZeroYears(t *testing.T) {
	ldr := &mockLoader{name: "csv"}
	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, lagCaps()),
		[]pipeline.Loader{ldr}, slog.Default(), newTestMetrics(), 0, 2022)

	got, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Synthetic())
	assert.Equal(t, 2, got.Table.Len())
	require.Len(t, ldr.loaded, 1)
}

func TestForecaster_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{name: "csv"}
	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, lagCaps()),
		[]pipeline.Loader{ldr}, slog.Default(), newTestMetrics(), 3, 2022)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := f.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.loaded)
}

func TestForecaster_DefaultRunIDIsUUID(t *testing.T) {
	f := pipeline.New(&mockSource{table: historical()}, newSynthesizer(t, lagCaps()),
		nil, slog.Default(), newTestMetrics(), 1, 2022)

	got, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, got.RunID)
}
