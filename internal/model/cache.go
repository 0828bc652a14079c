package model

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a regressor with an in-memory LRU cache keyed by the exact
// feature vector. Regressors are pure, so a hit is always valid.
type Cached struct {
	inner   domain.Regressor
	target  domain.Target
	cache   *lru.Cache[string, float64]
	metrics *observability.Metrics
}

// NewCached creates a cache decorator holding at most size predictions.
func NewCached(inner domain.Regressor, target domain.Target, size int, metrics *observability.Metrics) (*Cached, error) {
	cache, err := lru.New[string, float64](size)
	if err != nil {
		return nil, fmt.Errorf("prediction cache: %w", err)
	}
	return &Cached{inner: inner, target: target, cache: cache, metrics: metrics}, nil
}

func (c *Cached) Predict(ctx context.Context, features []float64) (float64, error) {
	key := featureKey(features)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.PredictionCache.WithLabelValues(string(c.target), "hit").Inc()
		return v, nil
	}
	c.metrics.PredictionCache.WithLabelValues(string(c.target), "miss").Inc()

	v, err := c.inner.Predict(ctx, features)
	if err != nil {
		return v, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached predictions.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func featureKey(features []float64) string {
	buf := make([]byte, 8*len(features))
	for i, f := range features {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
	}
	return string(buf)
}
