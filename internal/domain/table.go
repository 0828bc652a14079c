package domain

import (
	"errors"
	"slices"
)

// Table is an append-only sequence of observations. Append never touches the
// receiver, so a Table value can be shared freely once built.
type Table struct {
	rows []Observation
}

// NewTable copies rows into a new Table.
func NewTable(rows []Observation) Table {
	return Table{rows: slices.Clone(rows)}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.rows) }

// Rows returns a copy of every row in insertion order.
func (t Table) Rows() []Observation { return slices.Clone(t.rows) }

// Year returns the rows of one survey year in insertion order.
func (t Table) Year(year int) []Observation {
	var out []Observation
	for _, o := range t.rows {
		if o.SurveyYear == year {
			out = append(out, o)
		}
	}
	return out
}

// After returns the rows whose survey year is later than year.
func (t Table) After(year int) []Observation {
	var out []Observation
	for _, o := range t.rows {
		if o.SurveyYear > year {
			out = append(out, o)
		}
	}
	return out
}

// Years returns the distinct survey years in ascending order.
func (t Table) Years() []int {
	seen := make(map[int]struct{})
	var years []int
	for _, o := range t.rows {
		if _, ok := seen[o.SurveyYear]; !ok {
			seen[o.SurveyYear] = struct{}{}
			years = append(years, o.SurveyYear)
		}
	}
	slices.Sort(years)
	return years
}

// Append returns a new Table holding t's rows followed by batch.
func (t Table) Append(batch []Observation) Table {
	return Table{rows: append(slices.Clip(t.rows), batch...)}
}

// MaxID returns the largest id among rows, or 0 when rows is empty.
func MaxID(rows []Observation) int64 {
	var maxID int64
	for i, o := range rows {
		if i == 0 || o.ID > maxID {
			maxID = o.ID
		}
	}
	return maxID
}

// RangeQuery selects rows between two (year, month) points, inclusive.
// A zero StartMonth means January and a zero EndMonth means December.
type RangeQuery struct {
	StartYear  int
	StartMonth int
	EndYear    int
	EndMonth   int
}

var ErrInvalidRange = errors.New("invalid range")

func (q RangeQuery) normalized() (RangeQuery, error) {
	if q.StartMonth == 0 {
		q.StartMonth = 1
	}
	if q.EndMonth == 0 {
		q.EndMonth = 12
	}
	if q.StartMonth < 1 || q.StartMonth > 12 || q.EndMonth < 1 || q.EndMonth > 12 {
		return q, ErrInvalidRange
	}
	if q.StartYear*12+q.StartMonth > q.EndYear*12+q.EndMonth {
		return q, ErrInvalidRange
	}
	return q, nil
}

// Range returns the rows falling inside q.
func (t Table) Range(q RangeQuery) ([]Observation, error) {
	q, err := q.normalized()
	if err != nil {
		return nil, err
	}
	lo := q.StartYear*12 + q.StartMonth
	hi := q.EndYear*12 + q.EndMonth
	out := []Observation{}
	for _, o := range t.rows {
		k := o.SurveyYear*12 + o.Month
		if k >= lo && k <= hi {
			out = append(out, o)
		}
	}
	return out, nil
}
