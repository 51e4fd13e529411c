package simulation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/multierr"
)

// ErrValidation matches every ValidationError via errors.Is.
var ErrValidation = errors.New("validation error")

// ValidationError names the offending risk (empty for settings) and field.
type ValidationError struct {
	RiskID string
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	if e.RiskID == "" {
		return fmt.Sprintf("invalid settings: %s %v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid risk %s: %s %v: %s", e.RiskID, e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks settings then every risk in order, returning all problems
// combined. errors.As on the result yields the first one.
func Validate(risks []RiskInput, settings Settings) error {
	var err error
	err = multierr.Append(err, validateSettings(settings))
	if n := settings.Iterations; n > 0 && n <= MaxIterations && n*(len(risks)+1) > MaxSamples {
		err = multierr.Append(err, &ValidationError{
			Field:  "iterations",
			Value:  n,
			Reason: fmt.Sprintf("%d risks over %d iterations exceed the limit of %d samples", len(risks), n, MaxSamples),
		})
	}

	seen := make(map[string]struct{}, len(risks))
	for i, risk := range risks {
		label := risk.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			err = multierr.Append(err, &ValidationError{RiskID: label, Field: "id", Value: "", Reason: "must not be empty"})
		} else if _, dup := seen[risk.ID]; dup {
			err = multierr.Append(err, &ValidationError{RiskID: risk.ID, Field: "id", Value: risk.ID, Reason: "duplicate risk id"})
		}
		seen[risk.ID] = struct{}{}
		err = multierr.Append(err, validateRisk(risk, label))
	}
	return err
}

func validateSettings(s Settings) error {
	var err error
	switch {
	case s.Iterations <= 0:
		err = multierr.Append(err, &ValidationError{Field: "iterations", Value: s.Iterations, Reason: "must be positive"})
	case s.Iterations > MaxIterations:
		err = multierr.Append(err, &ValidationError{Field: "iterations", Value: s.Iterations, Reason: fmt.Sprintf("must not exceed %d", MaxIterations)})
	}
	if !slices.Contains(AllowedTargetPercentiles, s.TargetPercentile) {
		err = multierr.Append(err, &ValidationError{
			Field:  "targetPercentile",
			Value:  s.TargetPercentile,
			Reason: fmt.Sprintf("must be one of %v", AllowedTargetPercentiles),
		})
	}
	if s.HistogramBins < 0 {
		err = multierr.Append(err, &ValidationError{Field: "histogramBins", Value: s.HistogramBins, Reason: "must not be negative"})
	}
	if s.CurvePoints < 0 {
		err = multierr.Append(err, &ValidationError{Field: "curvePoints", Value: s.CurvePoints, Reason: "must not be negative"})
	}
	return err
}

// validateRisk checks one risk, naming it id in every error.
func validateRisk(r RiskInput, id string) error {
	var err error
	for _, f := range []struct {
		name  string
		value float64
	}{{"p10", r.P10}, {"p50", r.P50}, {"p90", r.P90}, {"probability", r.Probability}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			err = multierr.Append(err, &ValidationError{RiskID: id, Field: f.name, Value: f.value, Reason: "must be finite"})
		}
	}
	if err != nil {
		return err
	}

	if r.P10 > r.P50 {
		err = multierr.Append(err, &ValidationError{RiskID: id, Field: "p10", Value: r.P10, Reason: fmt.Sprintf("exceeds p50 %v", r.P50)})
	}
	if r.P50 > r.P90 {
		err = multierr.Append(err, &ValidationError{RiskID: id, Field: "p50", Value: r.P50, Reason: fmt.Sprintf("exceeds p90 %v", r.P90)})
	}
	if r.P10 > r.P90 {
		err = multierr.Append(err, &ValidationError{RiskID: id, Field: "p10", Value: r.P10, Reason: fmt.Sprintf("exceeds p90 %v", r.P90)})
	}
	if r.Probability < 0 || r.Probability > 1 {
		err = multierr.Append(err, &ValidationError{RiskID: id, Field: "probability", Value: r.Probability, Reason: "must be within [0, 1]"})
	}
	if !r.Shape.Valid() {
		err = multierr.Append(err, &ValidationError{RiskID: id, Field: "shape", Value: string(r.Shape), Reason: "unknown distribution shape"})
	}
	return err
}
