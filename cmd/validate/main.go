// Command validate checks a forecast CSV written by the forecaster for the
// integrity rules of synthetic survey years: ids contiguous per year, one
// synthetic row per source row, lags seeded from the previous year and
// chained within the year, and counts stored as non-negative integers.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/forecast.csv \
//	  -species elephant,zebra,buffalo \
//	  -last-year 2022
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/census-forecast/internal/adapter/csvtable"
	"github.com/couchcryptid/census-forecast/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the forecast CSV")
	species := flag.String("species", "", "comma-separated species catalog")
	strata := flag.String("strata", "", "comma-separated strata catalog")
	lastYear := flag.Int("last-year", 2022, "last historical survey year")
	flag.Parse()

	if *csvPath == "" || *species == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, splitList(*species), splitList(*strata), *lastYear); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath string, species, strata []string, lastYear int) int {
	fmt.Println("=== Census Forecast Integrity Validation ===")
	fmt.Println()

	catalog, err := domain.NewCatalog(species, strata)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open forecast CSV: %v\n", err)
		return 1
	}
	defer f.Close()
	rows, err := csvtable.Decode(context.Background(), f, catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read forecast CSV: %v\n", err)
		return 1
	}

	table := domain.NewTable(rows)
	phases := validate(table, lastYear)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d total, %d historical, %d synthetic\n",
		table.Len(), table.Len()-len(table.After(lastYear)), len(table.After(lastYear)))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validate runs every phase over the synthetic years of table.
func validate(table domain.Table, lastYear int) []*phase {
	var years []int
	for _, y := range table.Years() {
		if y > lastYear {
			years = append(years, y)
		}
	}
	return []*phase{
		validateYearSequence(table, lastYear, years),
		validateRowParity(table, years),
		validateIDs(table, years),
		validateLagSeeding(table, years),
		validateLagChaining(table, years),
		validateCounts(table, years),
	}
}

func validateYearSequence(table domain.Table, lastYear int, years []int) *phase {
	p := &phase{name: "Synthetic years are consecutive"}
	if len(table.Year(lastYear)) == 0 {
		p.errorf("no rows for last historical year %d", lastYear)
	}
	for i, y := range years {
		if want := lastYear + 1 + i; y != want {
			p.errorf("year %d found where %d was expected", y, want)
		}
	}
	return p
}

func validateRowParity(table domain.Table, years []int) *phase {
	p := &phase{name: "One synthetic row per source row"}
	for _, y := range years {
		src, syn := table.Year(y-1), table.Year(y)
		if len(src) != len(syn) {
			p.errorf("year %d: %d rows, source year has %d", y, len(syn), len(src))
			continue
		}
		for i := range syn {
			if syn[i].Species != src[i].Species || syn[i].Month != src[i].Month || syn[i].Day != src[i].Day {
				p.errorf("year %d row %d: species/date %s %d/%d does not mirror source %s %d/%d",
					y, syn[i].ID, syn[i].Species, syn[i].Month, syn[i].Day, src[i].Species, src[i].Month, src[i].Day)
			}
		}
	}
	return p
}

func validateIDs(table domain.Table, years []int) *phase {
	p := &phase{name: "IDs contiguous after source year"}
	for _, y := range years {
		next := domain.MaxID(table.Year(y-1)) + 1
		for _, o := range table.Year(y) {
			if o.ID != next {
				p.errorf("year %d: id %d, want %d", y, o.ID, next)
			}
			next++
		}
	}
	return p
}

func validateLagSeeding(table domain.Table, years []int) *phase {
	p := &phase{name: "First row per species seeded from source year"}
	for _, y := range years {
		prev := bySpecies(table.Year(y - 1))
		seen := make(map[string]bool)
		for _, o := range table.Year(y) {
			if seen[o.Species] {
				continue
			}
			seen[o.Species] = true
			if want := domain.SeedLags(prev[o.Species]); !lagsEqual(o.Lags, want) {
				p.errorf("year %d id %d (%s): lags %+v, want %+v", y, o.ID, o.Species, o.Lags, want)
			}
		}
	}
	return p
}

func validateLagChaining(table domain.Table, years []int) *phase {
	p := &phase{name: "Later rows chained from previous prediction"}
	for _, y := range years {
		last := make(map[string]domain.Observation)
		for _, o := range table.Year(y) {
			prev, ok := last[o.Species]
			last[o.Species] = o
			if !ok {
				continue
			}
			want := domain.Lags{
				LatLag1: value(prev.Latitude), LonLag1: value(prev.Longitude), CountLag1: value(prev.Count),
				LatLag2: prev.LatLag1, LonLag2: prev.LonLag1, CountLag2: prev.CountLag1,
			}
			if !lagsEqual(o.Lags, want) {
				p.errorf("year %d id %d (%s): lags %+v, want %+v", y, o.ID, o.Species, o.Lags, want)
			}
		}
	}
	return p
}

func validateCounts(table domain.Table, years []int) *phase {
	p := &phase{name: "Counts are non-negative integers"}
	for _, y := range years {
		for _, o := range table.Year(y) {
			if !o.Predicted() {
				p.errorf("year %d id %d: missing prediction", y, o.ID)
				continue
			}
			if c := *o.Count; c < 0 || c != math.Trunc(c) {
				p.errorf("year %d id %d: count %v", y, o.ID, c)
			}
		}
	}
	return p
}

func bySpecies(rows []domain.Observation) map[string][]domain.Observation {
	out := make(map[string][]domain.Observation)
	for _, o := range rows {
		out[o.Species] = append(out[o.Species], o)
	}
	return out
}

func lagsEqual(a, b domain.Lags) bool {
	av := []float64{a.LatLag1, a.LonLag1, a.CountLag1, a.LatLag2, a.LonLag2, a.CountLag2}
	bv := []float64{b.LatLag1, b.LonLag1, b.CountLag1, b.LatLag2, b.LonLag2, b.CountLag2}
	return slices.EqualFunc(av, bv, floatEq)
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
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
