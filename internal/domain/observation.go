package domain

import "math"

// Aircraft types as encoded by the cleaning step.
const (
	AircraftFixedWing  = 0
	AircraftHelicopter = 1
)

// Lags holds the (latitude, longitude, count) of the previous one and two
// observations of the same species.
type Lags struct {
	LatLag1   float64 `json:"lat_lag1"`
	LonLag1   float64 `json:"lon_lag1"`
	CountLag1 float64 `json:"count_lag1"`
	LatLag2   float64 `json:"lat_lag2"`
	LonLag2   float64 `json:"lon_lag2"`
	CountLag2 float64 `json:"count_lag2"`
}

// Observation is one species sighting in one survey pass.
//
// Count, Latitude and Longitude are nil while a synthetic row is waiting
// for its predictions.
type Observation struct {
	ID           int64    `json:"id"`
	SurveyYear   int      `json:"survey_year"`
	Month        int      `json:"month"`
	Day          int      `json:"day"`
	TimeOfDay    int      `json:"time_of_day"`
	AircraftType int      `json:"aircraft_type"`
	Species      string   `json:"species"`
	Stratum      string   `json:"stratum,omitempty"`
	Count        *float64 `json:"count"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Lags
}

// Predicted reports whether all three target fields are known.
func (o Observation) Predicted() bool {
	return o.Count != nil && o.Latitude != nil && o.Longitude != nil
}

// Float returns a pointer to v, for populating optional target fields.
func Float(v float64) *float64 {
	return &v
}

// valueOrZero dereferences an optional target, treating unknown as 0.
func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// RoundCount converts a raw count prediction into a stored count:
// rounded half away from zero and clamped at zero. Note that numpy's round
// goes half to even, so 8.5 becomes 9 here but 8 there.
func RoundCount(raw float64) float64 {
	c := math.Round(raw)
	if c <= 0 {
		return 0
	}
	return c
}
