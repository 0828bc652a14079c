package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"
)

var ErrNonFinitePrediction = errors.New("prediction is not a finite number")

// Synthesizer generates future survey years from a table of observations.
type Synthesizer struct {
	catalog Catalog
	caps    Capabilities
	workers int
	logger  *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithWorkers synthesizes up to n species groups of a year concurrently.
// Output does not depend on n.
func WithWorkers(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for per-year debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSynthesizer returns a Synthesizer that predicts with caps. Every target
// must have a regressor.
func NewSynthesizer(catalog Catalog, caps Capabilities, opts ...Option) (*Synthesizer, error) {
	if len(catalog.Species) == 0 {
		return nil, ErrEmptyCatalog
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	s := &Synthesizer{
		catalog: catalog,
		caps:    caps,
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SynthesizeYear appends year sourceYear+1 to table: one synthetic row per
// row of sourceYear, lags threaded per species, targets predicted. The
// returned table shares no mutable state with the input.
func (s *Synthesizer) SynthesizeYear(ctx context.Context, table Table, sourceYear int) (Table, error) {
	source := table.Year(sourceYear)
	if len(source) == 0 {
		return Table{}, fmt.Errorf("year %d: %w", sourceYear, ErrEmptySourceYear)
	}

	year := sourceYear + 1
	idx := indexBySpecies(source)
	batch := make([]Observation, len(source))

	// Groups write disjoint positions of batch.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, species := range idx.order {
		g.Go(func() error {
			return s.synthesizeGroup(gctx, idx, species, source, year, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return Table{}, err
	}

	firstID := MaxID(source) + 1
	for i := range batch {
		batch[i].ID = firstID + int64(i)
	}

	s.logger.Debug("synthesized year",
		"year", year,
		"rows", len(batch),
		"species", len(idx.order),
		"first_id", firstID,
	)
	return table.Append(batch), nil
}

// synthesizeGroup fills the batch positions of one species. Rows are handled
// strictly in order because each row's lags come from the row before it.
func (s *Synthesizer) synthesizeGroup(ctx context.Context, idx speciesIndex, species string, source []Observation, year int, batch []Observation) error {
	positions := idx.positions[species]
	if len(positions) == 0 {
		return nil
	}
	seeds := SeedLags(idx.rows(species, source))

	for i, pos := range positions {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := source[pos]
		next.ID = 0
		next.SurveyYear = year
		next.Count, next.Latitude, next.Longitude = nil, nil, nil
		if i == 0 {
			next.Lags = seeds
		} else {
			next.Lags = chainLags(batch[positions[i-1]])
		}

		predicted, err := s.predict(ctx, next, source[pos].ID)
		if err != nil {
			return err
		}
		batch[pos] = predicted
	}
	return nil
}

// predict fills the three targets of o in order: count, latitude, longitude.
func (s *Synthesizer) predict(ctx context.Context, o Observation, sourceID int64) (Observation, error) {
	features, err := FeatureVector(s.catalog, o)
	if err != nil {
		return o, fmt.Errorf("species %q year %d (source row %d): %w", o.Species, o.SurveyYear, sourceID, err)
	}

	for _, t := range Targets {
		v, err := s.caps[t].Predict(ctx, features)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = ErrNonFinitePrediction
		}
		if err != nil {
			return o, &PredictionError{Species: o.Species, Year: o.SurveyYear, Field: t, SourceID: sourceID, Err: err}
		}
		switch t {
		case TargetCount:
			o.Count = Float(RoundCount(v))
		case TargetLatitude:
			o.Latitude = Float(v)
		case TargetLongitude:
			o.Longitude = Float(v)
		}
	}
	return o, nil
}
