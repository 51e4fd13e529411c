package statistics

import (
	"math"
	"sort"
)

// DefaultCurvePoints is the default resolution of the exceedance curve.
const DefaultCurvePoints = 101

// ExceedancePoint pairs an outcome with the probability that the outcome is met
// or exceeded.
type ExceedancePoint struct {
	Value       float64 `json:"value"`
	Probability float64 `json:"probability"`
}

// ExceedanceCurve samples the S-curve of ascending totals at evenly spaced ranks.
// The probability at value v is 1 - r/n where r is the first rank holding v, so
// ties report the share of outcomes at or above v. Ranks landing on a value
// already on the curve are skipped, so each value appears once and the curve
// may hold fewer than points entries.
func ExceedanceCurve(sorted []float64, points int) []ExceedancePoint {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	if points <= 0 {
		points = DefaultCurvePoints
	}
	if points > n {
		points = n
	}
	if points == 1 {
		return []ExceedancePoint{{Value: sorted[0], Probability: 1}}
	}

	curve := make([]ExceedancePoint, 0, points)
	for k := 0; k < points; k++ {
		rank := int(math.Round(float64(k) * float64(n-1) / float64(points-1)))
		value := sorted[rank]
		if len(curve) > 0 && curve[len(curve)-1].Value == value {
			continue
		}
		first := sort.SearchFloat64s(sorted, value)
		curve = append(curve, ExceedancePoint{
			Value:       value,
			Probability: 1 - float64(first)/float64(n),
		})
	}
	return curve
}
