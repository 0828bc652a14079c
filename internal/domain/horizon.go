package domain

import (
	"context"
	"fmt"
	"time"
)

// Generate appends numYears synthetic years (lastYear+1 .. lastYear+numYears)
// to table. Each year is synthesized from the previous one, so the loop is
// strictly sequential. lastYear must be the latest year in table, otherwise
// synthetic ids and years would collide with history. On error no partial
// table is returned.
func (s *Synthesizer) Generate(ctx context.Context, table Table, numYears, lastYear int) (Table, error) {
	if numYears < 0 {
		return Table{}, fmt.Errorf("%w: %d", ErrNegativeHorizon, numYears)
	}
	if later := table.After(lastYear); len(later) > 0 {
		return Table{}, fmt.Errorf("%w: last year %d, found year %d", ErrLastYearNotLatest, lastYear, later[0].SurveyYear)
	}
	out := table
	for k := range numYears {
		var err error
		out, err = s.SynthesizeYear(ctx, out, lastYear+k)
		if err != nil {
			return Table{}, fmt.Errorf("synthesize year %d: %w", lastYear+k+1, err)
		}
	}
	return out, nil
}

// Generate is a one-shot form of Synthesizer.Generate.
func Generate(ctx context.Context, table Table, catalog Catalog, caps Capabilities, numYears, lastYear int, opts ...Option) (Table, error) {
	s, err := NewSynthesizer(catalog, caps, opts...)
	if err != nil {
		return Table{}, err
	}
	return s.Generate(ctx, table, numYears, lastYear)
}

// Forecast is the result of one horizon run.
type Forecast struct {
	RunID       string
	Table       Table
	BaseRows    int // rows of the input table; synthetic rows follow them
	LastYear    int
	Years       int
	GeneratedAt time.Time
}

// Synthetic returns only the generated rows.
func (f Forecast) Synthetic() []Observation {
	rows := f.Table.Rows()
	if f.BaseRows >= len(rows) {
		return nil
	}
	return rows[f.BaseRows:]
}

// Forecast runs Generate and stamps the result with the generation time.
func (s *Synthesizer) Forecast(ctx context.Context, table Table, numYears, lastYear int) (Forecast, error) {
	out, err := s.Generate(ctx, table, numYears, lastYear)
	if err != nil {
		return Forecast{}, err
	}
	return Forecast{
		Table:       out,
		BaseRows:    table.Len(),
		LastYear:    lastYear,
		Years:       numYears,
		GeneratedAt: clock.Now(),
	}, nil
}
