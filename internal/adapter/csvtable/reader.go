// Package csvtable reads and writes census tables in the cleaned CSV layout:
// scalar columns followed by one indicator column per catalog species and
// stratum.
package csvtable

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/census-forecast/internal/domain"
)

// Column names of the cleaned layout. COUNT holds the survey year and NUMBER
// the animal count.
const (
	ColID        = "ID"
	ColYear      = "COUNT"
	ColMonth     = "MONTH"
	ColDay       = "DATE"
	ColTime      = "TIME"
	ColAircraft  = "TYPE"
	ColLatitude  = "LATITUDE"
	ColLongitude = "LONGITUDE"
	ColNumber    = "NUMBER"
	ColLatLag1   = "lat_lag1"
	ColLonLag1   = "lon_lag1"
	ColCountLag1 = "count_lag1"
	ColLatLag2   = "lat_lag2"
	ColLonLag2   = "lon_lag2"
	ColCountLag2 = "count_lag2"

	SpeciesPrefix = "SPECIES_"
	StratumPrefix = "STRATUM_"
)

var scalarColumns = []string{
	ColID, ColYear, ColMonth, ColDay, ColTime, ColAircraft,
	ColLatitude, ColLongitude, ColNumber,
	ColLatLag1, ColLonLag1, ColCountLag1, ColLatLag2, ColLonLag2, ColCountLag2,
}

var ErrMissingColumn = errors.New("missing column")

// Header returns the column layout for catalog.
func Header(catalog domain.Catalog) []string {
	h := make([]string, 0, len(scalarColumns)+len(catalog.Species)+len(catalog.Strata))
	h = append(h, scalarColumns...)
	for _, s := range catalog.Species {
		h = append(h, SpeciesPrefix+s)
	}
	for _, s := range catalog.Strata {
		h = append(h, StratumPrefix+s)
	}
	return h
}

// Reader loads a historical table from a CSV file.
type Reader struct {
	path    string
	catalog domain.Catalog
	logger  *slog.Logger
}

// NewReader creates a Reader for the file at path.
func NewReader(path string, catalog domain.Catalog, logger *slog.Logger) *Reader {
	return &Reader{path: path, catalog: catalog, logger: logger}
}

// LoadTable reads the whole file into a Table.
func (r *Reader) LoadTable(ctx context.Context) (domain.Table, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open census table: %w", err)
	}
	defer f.Close()

	rows, err := Decode(ctx, f, r.catalog)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", r.path, err)
	}
	r.logger.Info("census table loaded", "path", r.path, "rows", len(rows))
	return domain.NewTable(rows), nil
}

// Decode parses CSV rows from src. Columns not in the layout are ignored.
func Decode(ctx context.Context, src io.Reader, catalog domain.Catalog) ([]domain.Observation, error) {
	cr := csv.NewReader(src)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := indexColumns(header, catalog)
	if err != nil {
		return nil, err
	}

	var rows []domain.Observation
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		o, err := cols.parse(rec, catalog)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, o)
	}
}

type columns struct {
	scalar  map[string]int
	species []int
	strata  []int
}

func indexColumns(header []string, catalog domain.Catalog) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(h)] = i
	}
	lookup := func(name string) (int, error) {
		i, ok := pos[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		return i, nil
	}

	cols := columns{scalar: make(map[string]int, len(scalarColumns))}
	for _, name := range scalarColumns {
		i, err := lookup(name)
		if err != nil {
			return columns{}, err
		}
		cols.scalar[name] = i
	}
	for _, s := range catalog.Species {
		i, err := lookup(SpeciesPrefix + s)
		if err != nil {
			return columns{}, err
		}
		cols.species = append(cols.species, i)
	}
	for _, s := range catalog.Strata {
		i, err := lookup(StratumPrefix + s)
		if err != nil {
			return columns{}, err
		}
		cols.strata = append(cols.strata, i)
	}
	return cols, nil
}

func (c columns) parse(rec []string, catalog domain.Catalog) (domain.Observation, error) {
	p := fieldParser{rec: rec, cols: c.scalar}
	o := domain.Observation{
		ID:           int64(p.int(ColID)),
		SurveyYear:   p.int(ColYear),
		Month:        p.int(ColMonth),
		Day:          p.int(ColDay),
		TimeOfDay:    p.intOrZero(ColTime),
		AircraftType: p.aircraft(ColAircraft),
		Count:        p.target(ColNumber),
		Latitude:     p.target(ColLatitude),
		Longitude:    p.target(ColLongitude),
		Lags: domain.Lags{
			LatLag1:   p.float(ColLatLag1),
			LonLag1:   p.float(ColLonLag1),
			CountLag1: p.float(ColCountLag1),
			LatLag2:   p.float(ColLatLag2),
			LonLag2:   p.float(ColLonLag2),
			CountLag2: p.float(ColCountLag2),
		},
	}
	speciesInd := p.indicators(SpeciesPrefix, catalog.Species, c.species)
	strataInd := p.indicators(StratumPrefix, catalog.Strata, c.strata)
	if p.err != nil {
		return o, p.err
	}

	species, err := catalog.DecodeSpecies(speciesInd)
	if err != nil {
		return o, err
	}
	o.Species = species

	stratum, err := catalog.DecodeStratum(strataInd)
	if err != nil {
		return o, err
	}
	o.Stratum = stratum
	return o, nil
}

// fieldParser keeps the first parse error so a row can be decoded in one
// expression.
type fieldParser struct {
	rec  []string
	cols map[string]int
	err  error
}

func (p *fieldParser) raw(col string) string {
	i := p.cols[col]
	if i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *fieldParser) fail(col, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: invalid value %q: %w", col, value, err)
	}
}

func (p *fieldParser) float(col string) float64 {
	s := p.raw(col)
	if s == "" {
		p.fail(col, s, errors.New("empty"))
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(col, s, errors.New("not finite"))
		return 0
	}
	return v
}

// int accepts integral floats such as "2022.0".
func (p *fieldParser) int(col string) int {
	v := p.float(col)
	if v != math.Trunc(v) {
		p.fail(col, p.raw(col), errors.New("not an integer"))
		return 0
	}
	return int(v)
}

func (p *fieldParser) intOrZero(col string) int {
	if p.raw(col) == "" {
		return 0
	}
	return p.int(col)
}

func (p *fieldParser) aircraft(col string) int {
	switch strings.ToLower(p.raw(col)) {
	case "fixed-wing", "fixed wing":
		return domain.AircraftFixedWing
	case "helicopter":
		return domain.AircraftHelicopter
	}
	return p.int(col)
}

// target returns nil for an empty cell: the row has not been predicted.
func (p *fieldParser) target(col string) *float64 {
	if p.raw(col) == "" {
		return nil
	}
	return domain.Float(p.float(col))
}

func (p *fieldParser) indicators(prefix string, names []string, idx []int) []float64 {
	out := make([]float64, len(idx))
	for k, i := range idx {
		var s string
		if i < len(p.rec) {
			s = strings.TrimSpace(p.rec[i])
		}
		v, err := parseIndicator(s)
		if err != nil {
			p.fail(prefix+names[k], s, err)
		}
		out[k] = v
	}
	return out
}

func parseIndicator(s string) (float64, error) {
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
