package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCatalog      = errors.New("no species configured")
	ErrNoIndicator       = errors.New("no indicator set")
	ErrShapeMismatch     = errors.New("feature shape mismatch")
	ErrUnknownSpecies    = errors.New("unknown species")
	ErrUnknownStratum    = errors.New("unknown stratum")
	ErrMissingCapability = errors.New("missing prediction capability")
	ErrEmptySourceYear   = errors.New("no observations in source year")
	ErrNegativeHorizon   = errors.New("negative horizon")
	ErrLastYearNotLatest = errors.New("table has rows after the last historical year")
)

// PredictionError identifies the (species, year, field) triple whose
// prediction failed, so compounding errors can be traced to their origin.
type PredictionError struct {
	Species  string
	Year     int
	Field    Target
	SourceID int64
	Err      error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict %s for species %q year %d (source row %d): %v", e.Field, e.Species, e.Year, e.SourceID, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}
