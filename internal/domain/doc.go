// Package domain models aerial wildlife-census observations and the
// autoregressive loop that forecasts future survey years from them.
//
// # Data Source
//
// Observations come from a national park's aerial counting programme. Each
// row is one species sighting in one survey pass. The upstream cleaning step
// has already label-encoded the month, converted the time of day to seconds
// since midnight (0 when unknown), mapped the aircraft type to 0/1 and
// one-hot encoded the species and stratum columns.
//
// Column conventions of the cleaned table:
//
//	COUNT      survey year (the "count epoch"), e.g. 2022
//	MONTH      1-12
//	DATE       day of month
//	TIME       seconds since midnight
//	TYPE       0 fixed-wing, 1 helicopter
//	NUMBER     animals counted            -> Observation.Count
//	LATITUDE   WGS-84 latitude            -> Observation.Latitude
//	LONGITUDE  WGS-84 longitude           -> Observation.Longitude
//	SPECIES_x  one indicator per species  -> Observation.Species
//	STRATUM_x  one indicator per stratum  -> Observation.Stratum
//
// The species and stratum sets are configuration ([Catalog]); a row's value
// is recovered by argmax over the catalogued indicator columns.
//
// # Lags
//
// Every observation carries the (latitude, longitude, count) of the previous
// one and two observations of the same species. For historical rows the
// cleaning step computed them. For a synthetic year:
//
//	first row of a species   lag1 = last row of that species in the previous
//	                         year, lag2 = the row before it, 0 when missing
//	later rows               lag1 = predicted values of the previous synthetic
//	                         row, lag2 = that row's lag1
//
// # Synthesis
//
// [Synthesizer.SynthesizeYear] produces one synthetic row per row of the
// source year. Predictions are filled in the order count, latitude,
// longitude; the count is rounded half away from zero and clamped at 0
// ([RoundCount]). Ids of the new year continue from the largest id of the
// source year and follow source row order.
//
// [Synthesizer.Generate] repeats this for a horizon of N years. A failed
// prediction aborts the whole run with a [PredictionError] naming the
// species, year and field, since every later lag would depend on it.
package domain
