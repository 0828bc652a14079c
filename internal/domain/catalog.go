package domain

import (
	"fmt"
	"slices"
)

// Catalog is the fixed set of categorical values the cleaning step one-hot
// encodes. Order matters: it defines the indicator column order of the
// feature vector.
type Catalog struct {
	Species []string
	Strata  []string
}

// NewCatalog validates and returns a Catalog. Species must be non-empty and
// neither list may contain duplicates.
func NewCatalog(species, strata []string) (Catalog, error) {
	if len(species) == 0 {
		return Catalog{}, fmt.Errorf("catalog: %w", ErrEmptyCatalog)
	}
	if d, ok := firstDuplicate(species); ok {
		return Catalog{}, fmt.Errorf("catalog: duplicate species %q", d)
	}
	if d, ok := firstDuplicate(strata); ok {
		return Catalog{}, fmt.Errorf("catalog: duplicate stratum %q", d)
	}
	return Catalog{
		Species: slices.Clone(species),
		Strata:  slices.Clone(strata),
	}, nil
}

// HasSpecies reports whether name is a catalogued species.
func (c Catalog) HasSpecies(name string) bool {
	return slices.Contains(c.Species, name)
}

// HasStratum reports whether name is a catalogued stratum. The empty stratum
// is valid only for catalogs without strata.
func (c Catalog) HasStratum(name string) bool {
	if len(c.Strata) == 0 {
		return name == ""
	}
	return slices.Contains(c.Strata, name)
}

// DecodeSpecies recovers the active species from its indicator values,
// ordered like c.Species.
func (c Catalog) DecodeSpecies(indicators []float64) (string, error) {
	i, err := argmax(indicators, len(c.Species))
	if err != nil {
		return "", fmt.Errorf("decode species: %w", err)
	}
	return c.Species[i], nil
}

// DecodeStratum recovers the active stratum from its indicator values,
// ordered like c.Strata. Catalogs without strata decode to "".
func (c Catalog) DecodeStratum(indicators []float64) (string, error) {
	if len(c.Strata) == 0 {
		return "", nil
	}
	i, err := argmax(indicators, len(c.Strata))
	if err != nil {
		return "", fmt.Errorf("decode stratum: %w", err)
	}
	return c.Strata[i], nil
}

// argmax returns the index of the largest positive indicator. Ties resolve
// to the first column.
func argmax(indicators []float64, want int) (int, error) {
	if len(indicators) != want {
		return 0, fmt.Errorf("%w: got %d indicators, want %d", ErrShapeMismatch, len(indicators), want)
	}
	best := -1
	for i, v := range indicators {
		if v > 0 && (best < 0 || v > indicators[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0, ErrNoIndicator
	}
	return best, nil
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return "", false
}
