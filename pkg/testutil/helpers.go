// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/risk-forecast/pkg/statistics"
)

// FindSensitivity finds the sensitivity entry for a risk id.
// Returns a pointer to the entry if found, nil otherwise.
func FindSensitivity(entries []statistics.SensitivityEntry, riskID string) *statistics.SensitivityEntry {
	for i := range entries {
		if entries[i].RiskID == riskID {
			return &entries[i]
		}
	}
	return nil
}

// FindPercentile finds the row for percentile p in a percentile table.
func FindPercentile(rows []statistics.PercentileRow, p int) *statistics.PercentileRow {
	for i := range rows {
		if rows[i].Percentile == p {
			return &rows[i]
		}
	}
	return nil
}

// HistogramCount sums the counts of every bin.
func HistogramCount(bins []statistics.HistogramBin) int {
	total := 0
	for _, bin := range bins {
		total += bin.Count
	}
	return total
}

// ShareSum sums the variance contributions of every entry.
func ShareSum(entries []statistics.SensitivityEntry) float64 {
	total := 0.0
	for _, entry := range entries {
		total += entry.VarianceContribution
	}
	return total
}
