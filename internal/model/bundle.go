package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/couchcryptid/census-forecast/internal/domain"
)

// Model kinds accepted in a bundle.
const (
	KindLinear = "linear"
	KindGBT    = "gbt"
)

var ErrUnknownKind = errors.New("unknown model kind")

// Spec is the JSON form of one fitted model and its optional scaler.
type Spec struct {
	Kind   string          `json:"kind"`
	Scaler *StandardScaler `json:"scaler,omitempty"`

	// linear
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`

	// gbt
	Init         float64 `json:"init,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	Trees        []Tree  `json:"trees,omitempty"`
}

// Bundle is the exported set of three fitted models plus the feature order
// they were fitted on.
type Bundle struct {
	Features []string              `json:"features"`
	Models   map[domain.Target]Spec `json:"models"`
}

// LoadBundle reads a bundle from a JSON file.
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model bundle: %w", err)
	}
	defer f.Close()
	return DecodeBundle(f)
}

// DecodeBundle parses a bundle from r.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode model bundle: %w", err)
	}
	return &b, nil
}

// Capabilities builds one regressor per target. The bundle's feature order
// must match the vectors the domain builds for catalog.
func (b *Bundle) Capabilities(catalog domain.Catalog) (domain.Capabilities, error) {
	want := domain.FeatureNames(catalog)
	if !slices.Equal(b.Features, want) {
		return nil, fmt.Errorf("%w: bundle features %v, catalog features %v", domain.ErrShapeMismatch, b.Features, want)
	}

	caps := make(domain.Capabilities, len(domain.Targets))
	for _, t := range domain.Targets {
		spec, ok := b.Models[t]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingCapability, t)
		}
		r, err := spec.build(len(want))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", t, err)
		}
		caps[t] = r
	}
	return caps, nil
}

func (s Spec) build(numFeatures int) (domain.Regressor, error) {
	var r domain.Regressor
	switch s.Kind {
	case KindLinear:
		if len(s.Coefficients) != numFeatures {
			return nil, fmt.Errorf("%w: %d coefficients for %d features", domain.ErrShapeMismatch, len(s.Coefficients), numFeatures)
		}
		r = &Linear{Intercept: s.Intercept, Coefficients: s.Coefficients}
	case KindGBT:
		m := &GradientBoosted{Init: s.Init, LearningRate: s.LearningRate, NumFeatures: numFeatures, Trees: s.Trees}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		r = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}

	if s.Scaler == nil {
		return r, nil
	}
	if len(s.Scaler.Mean) != numFeatures || len(s.Scaler.Scale) != numFeatures {
		return nil, fmt.Errorf("%w: scaler has %d/%d statistics for %d features", domain.ErrShapeMismatch, len(s.Scaler.Mean), len(s.Scaler.Scale), numFeatures)
	}
	return &Scaled{Scaler: s.Scaler, Model: r}, nil
}
