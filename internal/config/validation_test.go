package config

import (
	"strings"
	"testing"
)

func TestValidateConfiguration(t *testing.T) {
	complete := Risk{ID: "R-1", P10: ptr(1), P50: ptr(2), P90: ptr(3), Probability: 0.5}

	tests := []struct {
		name         string
		conf         Configuration
		wantWarnings int
		wantContains string
	}{
		{
			name: "Clean configuration",
			conf: Configuration{
				Simulation: SimulationConfig{Iterations: 10000},
				Risks:      []Risk{complete},
			},
			wantWarnings: 0,
		},
		{
			name: "Too few iterations",
			conf: Configuration{
				Simulation: SimulationConfig{Iterations: 100},
				Risks:      []Risk{complete},
			},
			wantWarnings: 1,
			wantContains: "below 1000",
		},
		{
			name: "Too many iterations",
			conf: Configuration{
				Simulation: SimulationConfig{Iterations: 500000},
				Risks:      []Risk{complete},
			},
			wantWarnings: 1,
			wantContains: "above 100000",
		},
		{
			name:         "No risks",
			conf:         Configuration{Simulation: SimulationConfig{Iterations: 10000}},
			wantWarnings: 1,
			wantContains: "no risks",
		},
		{
			name: "Incomplete and never-occurring risks",
			conf: Configuration{
				Simulation: SimulationConfig{Iterations: 10000},
				Risks: []Risk{
					{P10: ptr(1)},
					{ID: "R-2", P10: ptr(1), P50: ptr(2), P90: ptr(3)},
				},
			},
			wantWarnings: 2,
			wantContains: "risk #0 has an incomplete estimate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := tt.conf.ValidateConfiguration()
			if len(warnings) != tt.wantWarnings {
				t.Fatalf("expected %d warnings, got %d: %v", tt.wantWarnings, len(warnings), warnings)
			}
			if tt.wantContains == "" {
				return
			}
			found := false
			for _, w := range warnings {
				if strings.Contains(w, tt.wantContains) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a warning containing %q, got %v", tt.wantContains, warnings)
			}
		})
	}
}
