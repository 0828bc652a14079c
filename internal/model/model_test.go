package model_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/model"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type countingRegressor struct {
	calls atomic.Int64
	value float64
	err   error
}

func (r *countingRegressor) Predict(_ context.Context, _ []float64) (float64, error) {
	r.calls.Add(1)
	return r.value, r.err
}

// --- tests ---

func TestStandardScaler_Transform(t *testing.T) {
	s := &model.StandardScaler{Mean: []float64{10, 5, 1}, Scale: []float64{2, 0, 4}}

	got, err := s.Transform([]float64{14, 8, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 0}, got)

	_, err = s.Transform([]float64{1, 2})
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestLinear_Predict(t *testing.T) {
	m := &model.Linear{Intercept: 1.5, Coefficients: []float64{2, -1, 0.5}}

	got, err := m.Predict(context.Background(), []float64{3, 4, 2})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, got, 1e-12)

	_, err = m.Predict(context.Background(), []float64{3})
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestScaled_Predict(t *testing.T) {
	m := &model.Scaled{
		Scaler: &model.StandardScaler{Mean: []float64{10}, Scale: []float64{5}},
		Model:  &model.Linear{Coefficients: []float64{3}},
	}

	got, err := m.Predict(context.Background(), []float64{20})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got, 1e-12)
}

// stump splits feature 0 at 1.0: left leaf 10, right leaf 20.
func stump() model.Tree {
	return model.Tree{
		Feature:   []int{0, -1, -1},
		Threshold: []float64{1.0, 0, 0},
		Left:      []int{1, -1, -1},
		Right:     []int{2, -1, -1},
		Value:     []float64{0, 10, 20},
	}
}

func TestGradientBoosted_Predict(t *testing.T) {
	m := &model.GradientBoosted{
		Init:         100,
		LearningRate: 0.1,
		NumFeatures:  2,
		Trees:        []model.Tree{stump(), stump()},
	}
	require.NoError(t, m.Validate())

	left, err := m.Predict(context.Background(), []float64{1.0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 102.0, left, 1e-12)

	right, err := m.Predict(context.Background(), []float64{1.5, 0})
	require.NoError(t, err)
	assert.InDelta(t, 104.0, right, 1e-12)

	_, err = m.Predict(context.Background(), []float64{1})
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestGradientBoosted_ValidateRejectsBadTrees(t *testing.T) {
	cycle := stump()
	cycle.Left[0] = 0

	outOfRange := stump()
	outOfRange.Feature[0] = 5

	short := stump()
	short.Value = []float64{1}

	for name, tree := range map[string]model.Tree{"cycle": cycle, "feature out of range": outOfRange, "short arrays": short, "empty": {}} {
		m := &model.GradientBoosted{NumFeatures: 2, Trees: []model.Tree{tree}}
		assert.ErrorIs(t, m.Validate(), model.ErrInvalidTree, name)
	}
}

func TestCached_Predict(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	inner := &countingRegressor{value: 42}

	c, err := model.NewCached(inner, domain.TargetCount, 2, metrics)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		v, err := c.Predict(ctx, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 42.0, v)
	}
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PredictionCache.WithLabelValues("count", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PredictionCache.WithLabelValues("count", "miss")))

	// A different vector misses.
	_, err = c.Predict(ctx, []float64{1, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCached_DoesNotCacheErrors(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	inner := &countingRegressor{err: errors.New("not fitted")}

	c, err := model.NewCached(inner, domain.TargetLatitude, 8, metrics)
	require.NoError(t, err)

	for range 2 {
		_, err := c.Predict(context.Background(), []float64{1})
		require.Error(t, err)
	}
	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Zero(t, c.Len())
}

func TestNewCached_InvalidSize(t *testing.T) {
	_, err := model.NewCached(&countingRegressor{}, domain.TargetCount, 0, observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestDecorate(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	failing := &countingRegressor{err: errors.New("boom")}
	caps := domain.Capabilities{
		domain.TargetCount:     &countingRegressor{value: 3},
		domain.TargetLatitude:  &countingRegressor{value: -20},
		domain.TargetLongitude: failing,
	}

	decorated, err := model.Decorate(caps, 0, metrics)
	require.NoError(t, err)

	v, err := decorated[domain.TargetCount].Predict(context.Background(), []float64{1})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	_, err = decorated[domain.TargetLongitude].Predict(context.Background(), []float64{1})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PredictionRequests.WithLabelValues("count", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PredictionRequests.WithLabelValues("longitude", "error")))

	delete(caps, domain.TargetLatitude)
	_, err = model.Decorate(caps, 0, metrics)
	require.ErrorIs(t, err, domain.ErrMissingCapability)
}

func TestDecorate_WithCache(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	inner := &countingRegressor{value: 7}
	caps := domain.Capabilities{
		domain.TargetCount:     inner,
		domain.TargetLatitude:  &countingRegressor{},
		domain.TargetLongitude: &countingRegressor{},
	}

	decorated, err := model.Decorate(caps, 16, metrics)
	require.NoError(t, err)
	_, ok := decorated[domain.TargetCount].(*model.Cached)
	require.True(t, ok)

	for range 2 {
		_, err := decorated[domain.TargetCount].Predict(context.Background(), []float64{1, 1})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PredictionRequests.WithLabelValues("count", "success")))
}
