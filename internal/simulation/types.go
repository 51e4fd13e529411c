// Package simulation runs the Monte Carlo risk exposure engine: it samples every
// risk across the configured iterations and reduces the iteration record into a
// Result.
package simulation

import (
	"time"

	"github.com/iwvelando/risk-forecast/pkg/distribution"
	"github.com/iwvelando/risk-forecast/pkg/statistics"
)

// Run size limits. Every iteration stores its total plus one contribution per
// risk, so MaxSamples bounds the memory of a single run at about 400MB.
const (
	MaxIterations = 5_000_000
	MaxSamples    = 50_000_000
)

// AllowedTargetPercentiles are the confidence levels a run may plan against.
var AllowedTargetPercentiles = []int{50, 70, 80, 85, 90, 95}

// RiskInput is one risk from the register as fed to the engine.
type RiskInput struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	distribution.Estimate
	Probability float64 `json:"probability"`
	// CostOnly risks cannot produce negative impacts; negative samples are
	// clamped to zero and reported in Result.Flags.
	CostOnly bool `json:"costOnly,omitempty"`
}

// Settings controls one run.
type Settings struct {
	Iterations       int    `json:"iterations"`
	TargetPercentile int    `json:"targetPercentile"`
	Seed             uint64 `json:"seed"`
	HistogramBins    int    `json:"histogramBins,omitempty"`
	CurvePoints      int    `json:"curvePoints,omitempty"`
}

// ClockSeed derives a seed from the current time for runs that did not pin one.
func ClockSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

// withDefaults fills the optional dataset resolutions.
func (s Settings) withDefaults() Settings {
	if s.HistogramBins <= 0 {
		s.HistogramBins = statistics.DefaultBins
	}
	if s.CurvePoints <= 0 {
		s.CurvePoints = statistics.DefaultCurvePoints
	}
	return s
}

// CheckpointFunc is invoked between iteration shards with the number of
// completed and total iterations. Returning an error aborts the run.
type CheckpointFunc func(completed, total int) error

// Request is everything a run needs.
type Request struct {
	Risks    []RiskInput
	Settings Settings
	// Base is the deterministic baseline total to which impacts are added.
	Base float64
	// TotalRisks is the size of the register the risks were drawn from. Zero
	// means len(Risks).
	TotalRisks int
	Checkpoint CheckpointFunc
}

// RiskFlag reports non-fatal adjustments made to a risk's samples.
type RiskFlag struct {
	RiskID string `json:"riskId"`
	// ClampedSamples counts cost-only samples raised to zero.
	ClampedSamples int `json:"clampedSamples"`
	// FlooredSamples counts unbounded samples raised to the sampler floor.
	FlooredSamples int `json:"flooredSamples"`
}

// Result is the engine's sole output. It is never mutated after Run returns.
type Result struct {
	Base         float64   `json:"base"`
	Distribution []float64 `json:"distribution"`

	statistics.Summary

	Sensitivity     []statistics.SensitivityEntry `json:"sensitivityAnalysis"`
	Histogram       []statistics.HistogramBin     `json:"histogram"`
	ExceedanceCurve []statistics.ExceedancePoint  `json:"exceedanceCurve"`

	RisksAnalyzed int        `json:"risksAnalyzed"`
	TotalRisks    int        `json:"totalRisks"`
	Flags         []RiskFlag `json:"flags,omitempty"`
	Settings      Settings   `json:"settings"`
}
