package domain

// SeedLags returns the lags for the first synthetic row of a species: lag1
// from the last observation of group, lag2 from the one before it. Missing
// positions, and targets that were never predicted, default to zero.
func SeedLags(group []Observation) Lags {
	var l Lags
	n := len(group)
	if n >= 1 {
		last := group[n-1]
		l.LatLag1 = valueOrZero(last.Latitude)
		l.LonLag1 = valueOrZero(last.Longitude)
		l.CountLag1 = valueOrZero(last.Count)
	}
	if n >= 2 {
		prev := group[n-2]
		l.LatLag2 = valueOrZero(prev.Latitude)
		l.LonLag2 = valueOrZero(prev.Longitude)
		l.CountLag2 = valueOrZero(prev.Count)
	}
	return l
}

// chainLags shifts a freshly predicted row into the lags of the next row of
// the same species.
func chainLags(prev Observation) Lags {
	return Lags{
		LatLag1:   valueOrZero(prev.Latitude),
		LonLag1:   valueOrZero(prev.Longitude),
		CountLag1: valueOrZero(prev.Count),
		LatLag2:   prev.LatLag1,
		LonLag2:   prev.LonLag1,
		CountLag2: prev.CountLag1,
	}
}

// speciesIndex groups row positions by species, keeping row order inside
// each group and first-appearance order across groups.
type speciesIndex struct {
	order     []string
	positions map[string][]int
}

func indexBySpecies(rows []Observation) speciesIndex {
	idx := speciesIndex{positions: make(map[string][]int)}
	for i, o := range rows {
		if _, ok := idx.positions[o.Species]; !ok {
			idx.order = append(idx.order, o.Species)
		}
		idx.positions[o.Species] = append(idx.positions[o.Species], i)
	}
	return idx
}

func (idx speciesIndex) rows(species string, rows []Observation) []Observation {
	pos := idx.positions[species]
	out := make([]Observation, len(pos))
	for i, p := range pos {
		out[i] = rows[p]
	}
	return out
}
