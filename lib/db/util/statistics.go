package util

import (
	"math"
	"slices"
)

// SizeSummary describes a set of sizes, for example the encoded sizes of
// all rows of a group or the row counts of its tables.
type SizeSummary struct {
	Count  int     `json:"count"`
	Total  int     `json:"total"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median int     `json:"median"`
	P90    int     `json:"p90"`
	// Spread is the coefficient of variation, 0 if all sizes are equal
	Spread float64 `json:"spread"`
}

// Summarize computes the summary of the sizes. The slice is not modified.
func Summarize(sizes []int) SizeSummary {
	if len(sizes) == 0 {
		return SizeSummary{}
	}
	sorted := slices.Clone(sizes)
	slices.Sort(sorted)

	s := SizeSummary{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: Percentile(sorted, 50),
		P90:    Percentile(sorted, 90),
	}
	for _, v := range sorted {
		s.Total += v
	}
	s.Mean = float64(s.Total) / float64(s.Count)

	if s.Mean > 0 {
		var squares float64
		for _, v := range sorted {
			d := float64(v) - s.Mean
			squares += d * d
		}
		s.Spread = math.Sqrt(squares/float64(s.Count)) / s.Mean
	}
	return s
}

// Percentile returns the nearest-rank percentile (0-100) of ascending sizes
func Percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)
	rank := int(math.Ceil(float64(len(sorted)) * float64(p) / 100))
	return sorted[max(rank-1, 0)]
}
