// Package model evaluates fitted regressors exported from the training
// notebooks. It never fits anything: coefficients, trees and scaler
// statistics arrive as JSON (see Bundle).
package model

import (
	"context"
	"fmt"

	"github.com/couchcryptid/census-forecast/internal/domain"
)

// StandardScaler applies (x - mean) / scale per feature. A zero scale is
// treated as 1, matching constant columns at fit time.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) || len(x) != len(s.Scale) {
		return nil, fmt.Errorf("%w: scaler fitted on %d features, got %d", domain.ErrShapeMismatch, len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// Linear is an ordinary linear regressor.
type Linear struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (m *Linear) Predict(_ context.Context, features []float64) (float64, error) {
	if len(features) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: linear model fitted on %d features, got %d", domain.ErrShapeMismatch, len(m.Coefficients), len(features))
	}
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * features[i]
	}
	return y, nil
}

// Scaled normalises features before handing them to the wrapped regressor,
// the way each model was paired with its scaler at fit time.
type Scaled struct {
	Scaler *StandardScaler
	Model  domain.Regressor
}

func (m *Scaled) Predict(ctx context.Context, features []float64) (float64, error) {
	x, err := m.Scaler.Transform(features)
	if err != nil {
		return 0, err
	}
	return m.Model.Predict(ctx, x)
}
