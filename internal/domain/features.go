package domain

import (
	"fmt"
	"slices"
)

var baseFeatureNames = []string{
	"survey_year", "month", "day", "time_of_day", "aircraft_type",
	"lat_lag1", "lon_lag1", "count_lag1", "lat_lag2", "lon_lag2", "count_lag2",
}

// FeatureNames returns the column order of the vectors built by
// FeatureVector. Models must be fitted on exactly this order.
func FeatureNames(c Catalog) []string {
	names := make([]string, 0, FeatureLen(c))
	names = append(names, baseFeatureNames...)
	for _, s := range c.Species {
		names = append(names, "species_"+s)
	}
	for _, s := range c.Strata {
		names = append(names, "stratum_"+s)
	}
	return names
}

// FeatureLen is len(FeatureNames(c)).
func FeatureLen(c Catalog) int {
	return len(baseFeatureNames) + len(c.Species) + len(c.Strata)
}

// FeatureVector flattens an observation into model input. Identity (ID) and
// target fields are never read.
func FeatureVector(c Catalog, o Observation) ([]float64, error) {
	v := make([]float64, FeatureLen(c))
	v[0] = float64(o.SurveyYear)
	v[1] = float64(o.Month)
	v[2] = float64(o.Day)
	v[3] = float64(o.TimeOfDay)
	v[4] = float64(o.AircraftType)
	v[5] = o.LatLag1
	v[6] = o.LonLag1
	v[7] = o.CountLag1
	v[8] = o.LatLag2
	v[9] = o.LonLag2
	v[10] = o.CountLag2

	off := len(baseFeatureNames)
	species := slices.Index(c.Species, o.Species)
	if species < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, o.Species)
	}
	v[off+species] = 1

	if len(c.Strata) > 0 {
		off += len(c.Species)
		stratum := slices.Index(c.Strata, o.Stratum)
		if stratum < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStratum, o.Stratum)
		}
		v[off+stratum] = 1
	}
	return v, nil
}
