package config

import (
	"strings"
	"testing"

	"github.com/iwvelando/risk-forecast/pkg/distribution"
)

func ptr(v float64) *float64 {
	return &v
}

func TestRiskInput(t *testing.T) {
	tests := []struct {
		name      string
		risk      Risk
		wantShape distribution.Shape
		wantError bool
	}{
		{
			name:      "Empty shape defaults to triangular",
			risk:      Risk{ID: "R-1", P10: ptr(1), P50: ptr(2), P90: ptr(3), Probability: 0.5},
			wantShape: distribution.Triangular,
		},
		{
			name:      "Alias is normalized",
			risk:      Risk{ID: "R-2", P10: ptr(1), P50: ptr(2), P90: ptr(3), Shape: "Beta-PERT"},
			wantShape: distribution.PERT,
		},
		{
			name:      "Unknown shape passes through",
			risk:      Risk{ID: "R-3", P10: ptr(1), P50: ptr(2), P90: ptr(3), Shape: "lognormal"},
			wantShape: distribution.Shape("lognormal"),
		},
		{
			name:      "Missing estimate point",
			risk:      Risk{ID: "R-4", P10: ptr(1), P90: ptr(3)},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := tt.risk.Input()
			if tt.wantError {
				if err == nil {
					t.Errorf("Input() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Input() error = %v", err)
			}
			if input.Shape != tt.wantShape {
				t.Errorf("Shape = %q, expected %q", input.Shape, tt.wantShape)
			}
			if input.ID != tt.risk.ID || input.P10 != *tt.risk.P10 || input.P90 != *tt.risk.P90 {
				t.Errorf("unexpected conversion %+v", input)
			}
		})
	}
}

func TestRequestFromConfiguration(t *testing.T) {
	conf, err := LoadConfigurationFromReader(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}

	req := conf.Request()
	if len(req.Risks) != 2 {
		t.Fatalf("expected 2 analyzable risks, got %d", len(req.Risks))
	}
	if req.TotalRisks != 3 {
		t.Errorf("TotalRisks = %d, expected 3", req.TotalRisks)
	}
	if req.Risks[0].ID != "R-1" || req.Risks[1].ID != "R-2" {
		t.Errorf("expected register order to be preserved, got %s, %s", req.Risks[0].ID, req.Risks[1].ID)
	}
	if req.Base != 1000000 {
		t.Errorf("Base = %v, expected 1000000", req.Base)
	}
	if req.Settings.Seed != 42 || req.Settings.Iterations != 5000 || req.Settings.HistogramBins != 20 {
		t.Errorf("unexpected settings %+v", req.Settings)
	}
}

func TestSettingsResolvesMissingSeed(t *testing.T) {
	conf := &Configuration{Simulation: SimulationConfig{Iterations: 10, TargetPercentile: 80}}
	if conf.Settings().Seed == 0 {
		t.Errorf("expected a clock-derived seed, got 0")
	}
}

func TestSamplerConfig(t *testing.T) {
	floored := (&Configuration{Sampling: SamplingConfig{NormalFloor: -100}}).SamplerConfig()
	if floored.NormalFloor == nil || *floored.NormalFloor != -100 {
		t.Errorf("expected floor -100, got %v", floored.NormalFloor)
	}

	open := (&Configuration{Sampling: SamplingConfig{NormalFloor: -100, AllowNegativeNormal: true}}).SamplerConfig()
	if open.NormalFloor != nil {
		t.Errorf("expected no floor when negatives are allowed, got %v", *open.NormalFloor)
	}
}
