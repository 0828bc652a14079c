package domain

import (
	"context"
	"fmt"
)

// Target names one of the three predicted fields.
type Target string

const (
	TargetCount     Target = "count"
	TargetLatitude  Target = "latitude"
	TargetLongitude Target = "longitude"
)

// Targets lists the predicted fields in the order they are filled.
var Targets = []Target{TargetCount, TargetLatitude, TargetLongitude}

// Regressor is a fitted model that maps a feature vector to a scalar.
// Implementations must be safe for concurrent use.
type Regressor interface {
	Predict(ctx context.Context, features []float64) (float64, error)
}

// RegressorFunc adapts a plain function to Regressor.
type RegressorFunc func(ctx context.Context, features []float64) (float64, error)

func (f RegressorFunc) Predict(ctx context.Context, features []float64) (float64, error) {
	return f(ctx, features)
}

// Capabilities bundles one regressor per target.
type Capabilities map[Target]Regressor

// Validate checks that every target has a regressor.
func (c Capabilities) Validate() error {
	for _, t := range Targets {
		if c[t] == nil {
			return fmt.Errorf("%w: %s", ErrMissingCapability, t)
		}
	}
	return nil
}
