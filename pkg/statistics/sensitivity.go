package statistics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Contribution is one risk's signed impact in every iteration, zero where the
// risk did not occur.
type Contribution struct {
	RiskID string
	Values []float64
}

// SensitivityEntry ranks one risk as a driver of outcome variance.
type SensitivityEntry struct {
	RiskID               string  `json:"riskId"`
	VarianceContribution float64 `json:"varianceContribution"`
	Correlation          float64 `json:"correlation"`
}

// Sensitivity computes each risk's share of the summed contribution variances
// and its Pearson correlation with the totals. Risks whose contribution never
// varies are omitted. Entries are ordered by share, descending, then by risk id.
func Sensitivity(contributions []Contribution, totals []float64) ([]SensitivityEntry, error) {
	type varianceOf struct {
		index    int
		variance float64
	}

	varying := make([]varianceOf, 0, len(contributions))
	sum := 0.0
	for i, c := range contributions {
		if len(c.Values) != len(totals) {
			return nil, fmt.Errorf("risk %s has %d contributions for %d totals", c.RiskID, len(c.Values), len(totals))
		}
		v := variance(c.Values)
		if v == 0 {
			continue
		}
		varying = append(varying, varianceOf{index: i, variance: v})
		sum += v
	}

	entries := make([]SensitivityEntry, 0, len(varying))
	if sum == 0 {
		return entries, nil
	}

	for _, rv := range varying {
		c := contributions[rv.index]
		corr := stat.Correlation(c.Values, totals, nil)
		if math.IsNaN(corr) || math.IsInf(corr, 0) {
			corr = 0
		}
		entries = append(entries, SensitivityEntry{
			RiskID:               c.RiskID,
			VarianceContribution: rv.variance / sum,
			Correlation:          corr,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].VarianceContribution != entries[j].VarianceContribution {
			return entries[i].VarianceContribution > entries[j].VarianceContribution
		}
		return entries[i].RiskID < entries[j].RiskID
	})
	return entries, nil
}

// variance is the sample variance, exactly zero for constant or single-value
// slices.
func variance(values []float64) float64 {
	if len(values) < 2 || floats.Min(values) == floats.Max(values) {
		return 0
	}
	return stat.Variance(values, nil)
}
