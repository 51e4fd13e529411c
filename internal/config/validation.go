package config

import (
	"fmt"

	"github.com/iwvelando/risk-forecast/pkg/constants"
)

// ValidateConfiguration returns warnings for configurations that will run but
// are probably not what the author intended. Hard errors are reported by
// Validate and by the engine.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	iterations := c.Simulation.Iterations
	if iterations > 0 && iterations < constants.MinPracticalIterations {
		warnings = append(warnings, fmt.Sprintf(
			"simulation.iterations %d is below %d; percentiles will be noisy",
			iterations, constants.MinPracticalIterations))
	}
	if iterations > constants.MaxPracticalIterations {
		warnings = append(warnings, fmt.Sprintf(
			"simulation.iterations %d is above %d; the run may be slow and memory hungry",
			iterations, constants.MaxPracticalIterations))
	}

	if len(c.Risks) == 0 {
		warnings = append(warnings, "no risks configured; the result will equal the base at every percentile")
	}

	for i, risk := range c.Risks {
		label := risk.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if !risk.Complete() {
			warnings = append(warnings, fmt.Sprintf(
				"risk %s has an incomplete estimate and will be excluded from analysis", label))
			continue
		}
		if risk.Probability == 0 {
			warnings = append(warnings, fmt.Sprintf(
				"risk %s has probability 0 and will never occur", label))
		}
	}

	return warnings
}
