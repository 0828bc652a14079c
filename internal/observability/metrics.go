package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "census_forecast"

// Metrics holds the Prometheus counters, histograms, and gauges for forecast runs.
type Metrics struct {
	ObservationsLoaded      prometheus.Counter
	ObservationsSynthesized prometheus.Counter
	YearsSynthesized        prometheus.Counter
	ForecastErrors          prometheus.Counter
	ForecastRunning         prometheus.Gauge
	ForecastDuration        prometheus.Histogram

	// Prediction metrics.
	PredictionRequests *prometheus.CounterVec   // labels: target={count,latitude,longitude}, outcome={success,error}
	PredictionCache    *prometheus.CounterVec   // labels: target, result={hit,miss}
	PredictionDuration *prometheus.HistogramVec // labels: target

	// Sink metrics.
	SinkErrors *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all forecast metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsLoaded,
		m.ObservationsSynthesized,
		m.YearsSynthesized,
		m.ForecastErrors,
		m.ForecastRunning,
		m.ForecastDuration,
		m.PredictionRequests,
		m.PredictionCache,
		m.PredictionDuration,
		m.SinkErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_loaded_total",
			Help:      "Historical observations read from the source table.",
		}),
		ObservationsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_synthesized_total",
			Help:      "Synthetic observations produced by forecast runs.",
		}),
		YearsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_synthesized_total",
			Help:      "Future survey years produced by forecast runs.",
		}),
		ForecastErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_errors_total",
			Help:      "Forecast runs aborted by an error.",
		}),
		ForecastRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_running",
			Help:      "1 while a forecast run is in progress, 0 otherwise.",
		}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Duration of a complete load-generate-publish forecast run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PredictionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_requests_total",
			Help:      "Regressor evaluations by target and outcome.",
		}, []string{"target", "outcome"}),
		PredictionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups by target and result.",
		}, []string{"target", "result"}),
		PredictionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Regressor evaluation latency in seconds.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"target"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes of synthetic observations by sink.",
		}, []string{"sink"}),
	}
}
