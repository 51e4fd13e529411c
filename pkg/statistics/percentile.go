// Package statistics reduces simulated totals into the percentile, sensitivity,
// histogram, and exceedance datasets of a simulation result.
package statistics

import (
	"math"
	"slices"

	"github.com/iwvelando/risk-forecast/pkg/mathutil"
)

// SortedCopy returns an ascending copy of values, leaving the input untouched.
func SortedCopy(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return sorted
}

// Percentile returns the p-th percentile (0-100) of an ascending slice by linear
// interpolation between the order statistics at floor and ceil of p/100*(n-1).
// It returns NaN for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	p = mathutil.Clamp(p, 0, 100)
	index := p / 100 * float64(n-1)
	lo := int(math.Floor(index))
	hi := int(math.Ceil(index))
	if lo == hi {
		return sorted[lo]
	}
	frac := index - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
