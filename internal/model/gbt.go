package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/census-forecast/internal/domain"
)

var ErrInvalidTree = errors.New("invalid regression tree")

// Tree is one regression tree in flat node-array form. Node 0 is the root.
// A negative Feature marks a leaf whose prediction is Value; otherwise the
// walk goes Left when x[Feature] <= Threshold and Right otherwise.
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

// validate checks array lengths, child indices and feature indices so that
// eval cannot index out of range or loop.
func (t Tree) validate(numFeatures int) error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidTree)
	}
	if len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n || len(t.Value) != n {
		return fmt.Errorf("%w: node arrays differ in length", ErrInvalidTree)
	}
	for i, f := range t.Feature {
		if f < 0 {
			continue
		}
		if f >= numFeatures {
			return fmt.Errorf("%w: node %d splits on feature %d of %d", ErrInvalidTree, i, f, numFeatures)
		}
		// Children always point forward, which rules out cycles.
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("%w: node %d has children %d/%d", ErrInvalidTree, i, t.Left[i], t.Right[i])
		}
	}
	return nil
}

func (t Tree) eval(x []float64) float64 {
	node := 0
	for t.Feature[node] >= 0 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

// GradientBoosted is a least-squares gradient-boosted tree ensemble:
// Init + LearningRate * sum(tree(x)).
type GradientBoosted struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	NumFeatures  int     `json:"num_features"`
	Trees        []Tree  `json:"trees"`
}

// Validate checks every tree against NumFeatures.
func (m *GradientBoosted) Validate() error {
	if m.NumFeatures <= 0 {
		return fmt.Errorf("%w: num_features must be positive", ErrInvalidTree)
	}
	for i, t := range m.Trees {
		if err := t.validate(m.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (m *GradientBoosted) Predict(_ context.Context, features []float64) (float64, error) {
	if len(features) != m.NumFeatures {
		return 0, fmt.Errorf("%w: ensemble fitted on %d features, got %d", domain.ErrShapeMismatch, m.NumFeatures, len(features))
	}
	var sum float64
	for _, t := range m.Trees {
		sum += t.eval(features)
	}
	return m.Init + m.LearningRate*sum, nil
}
