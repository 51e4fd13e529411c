package statistics

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultBins is the bin count used when none is requested.
const DefaultBins = 50

// HistogramBin is one equal-width bucket of the frequency distribution.
type HistogramBin struct {
	BinStart float64 `json:"binStart"`
	BinEnd   float64 `json:"binEnd"`
	BinMid   float64 `json:"binMid"`
	Count    int     `json:"count"`
}

// Histogram bins totals into numBins equal-width buckets spanning [min, max].
// When the span is zero or not finite a single zero-width bin centered on the
// minimum holds every total. Counts always sum to len(totals).
func Histogram(totals []float64, numBins int) []HistogramBin {
	n := len(totals)
	if n == 0 {
		return nil
	}
	if numBins <= 0 {
		numBins = DefaultBins
	}

	min, max := floats.Min(totals), floats.Max(totals)
	span := max - min
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return []HistogramBin{{BinStart: min, BinEnd: min, BinMid: min, Count: n}}
	}

	width := span / float64(numBins)
	bins := make([]HistogramBin, numBins)
	for i := range bins {
		start := min + float64(i)*width
		end := min + float64(i+1)*width
		if i == numBins-1 {
			end = max
		}
		bins[i] = HistogramBin{BinStart: start, BinEnd: end, BinMid: (start + end) / 2}
	}

	for _, v := range totals {
		idx := int(math.Floor((v - min) / width))
		if idx >= numBins {
			idx = numBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Count++
	}
	return bins
}
