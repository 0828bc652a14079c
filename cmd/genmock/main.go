// Command genmock writes a deterministic mock census table and a matching
// linear model bundle, so the forecaster can be run locally without the
// real survey data or trained models.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv-out data/census.csv \
//	  -bundle-out data/models.json \
//	  -species elephant,zebra,buffalo \
//	  -first-year 2018 -last-year 2022
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/census-forecast/internal/adapter/csvtable"
	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/model"
)

// Survey area centre (Kruger-like latitude/longitude).
const (
	baseLat = -23.9
	baseLon = 31.5
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvOut := flag.String("csv-out", "", "output path for the mock census CSV")
	bundleOut := flag.String("bundle-out", "", "output path for the model bundle JSON")
	speciesList := flag.String("species", "elephant,zebra,buffalo", "comma-separated species catalog")
	strataList := flag.String("strata", "", "comma-separated strata catalog")
	firstYear := flag.Int("first-year", 2018, "first survey year")
	lastYear := flag.Int("last-year", 2022, "last survey year")
	passes := flag.Int("passes", 3, "sightings per species per year")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *csvOut == "" || *bundleOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -bundle-out")
	}
	if *lastYear < *firstYear || *passes < 1 {
		return fmt.Errorf("invalid year range or passes")
	}

	catalog, err := domain.NewCatalog(splitList(*speciesList), splitList(*strataList))
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	rows := generate(rng, catalog, *firstYear, *lastYear, *passes)
	if err := writeCSV(*csvOut, catalog, rows); err != nil {
		return fmt.Errorf("write %s: %w", *csvOut, err)
	}
	log.Printf("census: %d rows, %d species, years %d..%d", len(rows), len(catalog.Species), *firstYear, *lastYear)

	if err := writeJSON(*bundleOut, mockBundle(catalog)); err != nil {
		return fmt.Errorf("write %s: %w", *bundleOut, err)
	}
	log.Printf("bundle: %d features", domain.FeatureLen(catalog))
	return nil
}

// generate produces passes sightings per species per year. Each species
// drifts from a home position and its count follows a bounded random walk.
// Lags are filled by shifting within each species across the whole table.
func generate(rng *rand.Rand, catalog domain.Catalog, firstYear, lastYear, passes int) []domain.Observation {
	type state struct{ count, lat, lon float64 }
	states := make(map[string]*state, len(catalog.Species))
	for i, s := range catalog.Species {
		states[s] = &state{
			count: float64(10 + 20*i),
			lat:   baseLat + 0.2*float64(i),
			lon:   baseLon - 0.15*float64(i),
		}
	}

	var rows []domain.Observation
	id := int64(1)
	for year := firstYear; year <= lastYear; year++ {
		for pass := range passes {
			for _, species := range catalog.Species {
				st := states[species]
				st.count = math.Max(0, math.Round(st.count+rng.NormFloat64()*3))
				st.lat += rng.NormFloat64() * 0.02
				st.lon += rng.NormFloat64() * 0.02

				o := domain.Observation{
					ID:           id,
					SurveyYear:   year,
					Month:        9 + pass%3,
					Day:          1 + rng.IntN(28),
					TimeOfDay:    6*3600 + rng.IntN(6*3600),
					AircraftType: rng.IntN(2),
					Species:      species,
					Count:        domain.Float(st.count),
					Latitude:     domain.Float(math.Round(st.lat*1e5) / 1e5),
					Longitude:    domain.Float(math.Round(st.lon*1e5) / 1e5),
				}
				if len(catalog.Strata) > 0 {
					o.Stratum = catalog.Strata[rng.IntN(len(catalog.Strata))]
				}
				rows = append(rows, o)
				id++
			}
		}
	}
	fillLags(rows)
	return rows
}

// fillLags sets lag1/lag2 from the previous two rows of the same species.
func fillLags(rows []domain.Observation) {
	history := make(map[string][]int)
	for i := range rows {
		prev := history[rows[i].Species]
		if n := len(prev); n >= 1 {
			p := rows[prev[n-1]]
			rows[i].LatLag1, rows[i].LonLag1, rows[i].CountLag1 = *p.Latitude, *p.Longitude, *p.Count
		}
		if n := len(prev); n >= 2 {
			p := rows[prev[n-2]]
			rows[i].LatLag2, rows[i].LonLag2, rows[i].CountLag2 = *p.Latitude, *p.Longitude, *p.Count
		}
		history[rows[i].Species] = append(prev, i)
	}
}

// mockBundle predicts each target as a damped copy of its own lag1.
func mockBundle(catalog domain.Catalog) model.Bundle {
	names := domain.FeatureNames(catalog)
	lag := func(feature string, intercept, weight float64) model.Spec {
		coef := make([]float64, len(names))
		coef[slices.Index(names, feature)] = weight
		return model.Spec{Kind: model.KindLinear, Intercept: intercept, Coefficients: coef}
	}
	return model.Bundle{
		Features: names,
		Models: map[domain.Target]model.Spec{
			domain.TargetCount:     lag("count_lag1", 0.6, 0.98),
			domain.TargetLatitude:  lag("lat_lag1", 0.001, 1),
			domain.TargetLongitude: lag("lon_lag1", -0.001, 1),
		},
	}
}

func writeCSV(path string, catalog domain.Catalog, rows []domain.Observation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvtable.Encode(context.Background(), f, catalog, rows); err != nil {
		f.Close() //nolint:errcheck // already failing
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
