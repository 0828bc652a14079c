package model

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/observability"
)

// Instrumented records latency and outcome of every prediction.
type Instrumented struct {
	inner   domain.Regressor
	target  domain.Target
	metrics *observability.Metrics
}

// NewInstrumented wraps inner with prediction metrics labelled by target.
func NewInstrumented(inner domain.Regressor, target domain.Target, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{inner: inner, target: target, metrics: metrics}
}

func (m *Instrumented) Predict(ctx context.Context, features []float64) (float64, error) {
	start := time.Now()
	v, err := m.inner.Predict(ctx, features)
	m.metrics.PredictionDuration.WithLabelValues(string(m.target)).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.metrics.PredictionRequests.WithLabelValues(string(m.target), outcome).Inc()
	return v, err
}

// Decorate wraps every capability with metrics and, when cacheSize > 0,
// an LRU cache in front of the metrics so hits skip the evaluation counters.
func Decorate(caps domain.Capabilities, cacheSize int, metrics *observability.Metrics) (domain.Capabilities, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	out := make(domain.Capabilities, len(caps))
	for _, t := range domain.Targets {
		var r domain.Regressor = NewInstrumented(caps[t], t, metrics)
		if cacheSize > 0 {
			cached, err := NewCached(r, t, cacheSize, metrics)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t, err)
			}
			r = cached
		}
		out[t] = r
	}
	return out, nil
}
