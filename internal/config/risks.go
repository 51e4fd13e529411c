package config

import (
	"fmt"

	"github.com/iwvelando/risk-forecast/internal/simulation"
	"github.com/iwvelando/risk-forecast/pkg/distribution"
)

// Risk is one entry of the risk register as written in configuration. Estimates
// are pointers so that an incomplete entry can be told apart from a zero value.
type Risk struct {
	ID          string
	Name        string
	P10         *float64 `yaml:"p10,omitempty"`
	P50         *float64 `yaml:"p50,omitempty"`
	P90         *float64 `yaml:"p90,omitempty"`
	Probability float64
	Shape       string
	CostOnly    bool `yaml:"costOnly,omitempty"`
}

// Complete reports whether all three estimate points are present.
func (r Risk) Complete() bool {
	return r.P10 != nil && r.P50 != nil && r.P90 != nil
}

// ShapeName normalizes the configured shape; see distribution.NormalizeShape.
func (r Risk) ShapeName() distribution.Shape {
	return distribution.NormalizeShape(r.Shape)
}

// Input converts a complete risk to the engine's form.
func (r Risk) Input() (simulation.RiskInput, error) {
	if !r.Complete() {
		return simulation.RiskInput{}, fmt.Errorf("risk %s is missing one or more estimate points", r.ID)
	}

	return simulation.RiskInput{
		ID:   r.ID,
		Name: r.Name,
		Estimate: distribution.Estimate{
			P10:   *r.P10,
			P50:   *r.P50,
			P90:   *r.P90,
			Shape: r.ShapeName(),
		},
		Probability: r.Probability,
		CostOnly:    r.CostOnly,
	}, nil
}

// RiskInputs returns the analyzable risks in register order together with the
// size of the full register. Risks without a complete estimate are skipped.
func (c *Configuration) RiskInputs() ([]simulation.RiskInput, int) {
	inputs := make([]simulation.RiskInput, 0, len(c.Risks))
	for _, risk := range c.Risks {
		input, err := risk.Input()
		if err != nil {
			continue
		}
		inputs = append(inputs, input)
	}
	return inputs, len(c.Risks)
}

// Settings converts the simulation block. A missing seed is resolved from the
// clock so the chosen value can still be echoed in the result.
func (c *Configuration) Settings() simulation.Settings {
	var seed uint64
	if c.Simulation.Seed != nil {
		seed = *c.Simulation.Seed
	} else {
		seed = simulation.ClockSeed()
	}
	return simulation.Settings{
		Iterations:       c.Simulation.Iterations,
		TargetPercentile: c.Simulation.TargetPercentile,
		Seed:             seed,
		HistogramBins:    c.Simulation.HistogramBins,
		CurvePoints:      c.Simulation.CurvePoints,
	}
}

// SamplerConfig converts the sampling block.
func (c *Configuration) SamplerConfig() distribution.Config {
	cfg := distribution.Config{
		PERTLambda:  c.Sampling.PERTLambda,
		NormalZSpan: c.Sampling.NormalZSpan,
	}
	if !c.Sampling.AllowNegativeNormal {
		floor := c.Sampling.NormalFloor
		cfg.NormalFloor = &floor
	}
	return cfg
}

// Request assembles a complete engine request from the configuration.
func (c *Configuration) Request() simulation.Request {
	risks, total := c.RiskInputs()
	return simulation.Request{
		Risks:      risks,
		Settings:   c.Settings(),
		Base:       c.Project.Base,
		TotalRisks: total,
	}
}
