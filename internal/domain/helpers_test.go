package domain

import (
	"context"
	"errors"
	"sync/atomic"
)

// Feature positions used by the fake regressors.
const (
	featLatLag1   = 5
	featLonLag1   = 6
	featCountLag1 = 7
)

var testCatalog = Catalog{Species: []string{"elephant", "zebra", "buffalo"}}

func obs(id int64, year int, species string, count, lat, lon float64) Observation {
	return Observation{
		ID:         id,
		SurveyYear: year,
		Month:      9,
		Day:        14,
		TimeOfDay:  30600,
		Species:    species,
		Count:      Float(count),
		Latitude:   Float(lat),
		Longitude:  Float(lon),
	}
}

// historicalTable holds two survey years. Species rows are interleaved in
// 2022 so that group order differs from row order.
func historicalTable() Table {
	return NewTable([]Observation{
		obs(1, 2021, "elephant", 8, -20.0, 31.1),
		obs(2, 2021, "zebra", 35, -20.4, 30.9),
		obs(3, 2021, "buffalo", 90, -20.8, 31.8),
		obs(4, 2022, "elephant", 10, -20.1, 31.2),
		obs(5, 2022, "zebra", 40, -20.5, 31.0),
		obs(6, 2022, "elephant", 12, -20.2, 31.3),
		obs(7, 2022, "buffalo", 100, -20.9, 31.9),
		obs(8, 2022, "elephant", 9, -20.3, 31.4),
	})
}

// driftCaps predicts each target from its own lag1 plus a fixed drift.
func driftCaps() Capabilities {
	return Capabilities{
		TargetCount: RegressorFunc(func(_ context.Context, f []float64) (float64, error) {
			return f[featCountLag1] + 1.4, nil
		}),
		TargetLatitude: RegressorFunc(func(_ context.Context, f []float64) (float64, error) {
			return f[featLatLag1] + 0.01, nil
		}),
		TargetLongitude: RegressorFunc(func(_ context.Context, f []float64) (float64, error) {
			return f[featLonLag1] - 0.02, nil
		}),
	}
}

func constCaps(count, lat, lon float64) Capabilities {
	return Capabilities{
		TargetCount:     RegressorFunc(func(context.Context, []float64) (float64, error) { return count, nil }),
		TargetLatitude:  RegressorFunc(func(context.Context, []float64) (float64, error) { return lat, nil }),
		TargetLongitude: RegressorFunc(func(context.Context, []float64) (float64, error) { return lon, nil }),
	}
}

var errModelNotFitted = errors.New("model not fitted")

// failingRegressor fails once the species indicator at column col is set.
type failingRegressor struct {
	col   int
	calls atomic.Int64
}

func (r *failingRegressor) Predict(_ context.Context, f []float64) (float64, error) {
	r.calls.Add(1)
	if f[r.col] == 1 {
		return 0, errModelNotFitted
	}
	return 1, nil
}

func speciesColumn(c Catalog, species string) int {
	for i, name := range FeatureNames(c) {
		if name == "species_"+species {
			return i
		}
	}
	return -1
}

func bySpecies(rows []Observation, species string) []Observation {
	var out []Observation
	for _, o := range rows {
		if o.Species == species {
			out = append(out, o)
		}
	}
	return out
}
