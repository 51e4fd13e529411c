package statistics

import (
	"errors"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// StandardPercentiles are always present in a percentile table.
var StandardPercentiles = []int{5, 10, 20, 25, 50, 75, 80, 90, 95}

// ErrNoData is returned when there are no totals to aggregate.
var ErrNoData = errors.New("statistics: no totals to aggregate")

// PercentileRow is one row of the percentile table.
type PercentileRow struct {
	Percentile       int     `json:"percentile"`
	Value            float64 `json:"value"`
	VarianceFromBase float64 `json:"varianceFromBase"`
}

// Summary holds the aggregate statistics over all simulated totals.
type Summary struct {
	Mean             float64         `json:"mean"`
	StdDev           float64         `json:"stdDev"`
	Min              float64         `json:"min"`
	Max              float64         `json:"max"`
	PercentileTable  []PercentileRow `json:"percentileTable"`
	P10              float64         `json:"p10"`
	P50              float64         `json:"p50"`
	P90              float64         `json:"p90"`
	TargetPercentile int             `json:"targetPercentile"`
	TargetValue      float64         `json:"targetValue"`
}

// Aggregate sorts a copy of totals and summarizes it. See AggregateSorted.
func Aggregate(totals []float64, targetPercentile int, base float64) (Summary, error) {
	return AggregateSorted(SortedCopy(totals), targetPercentile, base)
}

// AggregateSorted summarizes ascending totals. StdDev uses the sample formula
// (squared deviations divided by n-1); a single total or a constant slice yields
// exactly zero.
func AggregateSorted(sorted []float64, targetPercentile int, base float64) (Summary, error) {
	n := len(sorted)
	if n == 0 {
		return Summary{}, ErrNoData
	}

	summary := Summary{
		Min:              sorted[0],
		Max:              sorted[n-1],
		TargetPercentile: targetPercentile,
	}
	if summary.Min == summary.Max {
		summary.Mean = summary.Min
	} else {
		summary.Mean, summary.StdDev = stat.MeanStdDev(sorted, nil)
	}

	levels := PercentileLevels(targetPercentile)
	summary.PercentileTable = make([]PercentileRow, 0, len(levels))
	for _, level := range levels {
		value := Percentile(sorted, float64(level))
		summary.PercentileTable = append(summary.PercentileTable, PercentileRow{
			Percentile:       level,
			Value:            value,
			VarianceFromBase: value - base,
		})
		switch level {
		case 10:
			summary.P10 = value
		case 50:
			summary.P50 = value
		case 90:
			summary.P90 = value
		}
		if level == targetPercentile {
			summary.TargetValue = value
		}
	}

	return summary, nil
}

// PercentileLevels returns the standard levels plus target, ascending and
// without duplicates.
func PercentileLevels(target int) []int {
	levels := slices.Clone(StandardPercentiles)
	if !slices.Contains(levels, target) {
		levels = append(levels, target)
		slices.Sort(levels)
	}
	return levels
}
