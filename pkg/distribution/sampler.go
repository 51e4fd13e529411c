package distribution

import (
	"fmt"
	"math"

	"github.com/iwvelando/risk-forecast/pkg/mathutil"
)

// Defaults for the configurable sampler constants.
const (
	// DefaultPERTLambda is the standard Beta-PERT peak weight.
	DefaultPERTLambda = 4.0

	// DefaultNormalZSpan is the width of the standard normal P10-P90 interval
	// (2 * 1.2816, rounded).
	DefaultNormalZSpan = 2.56
)

// Estimate is a three-point estimate of a risk's impact given that it occurs.
type Estimate struct {
	P10   float64 `json:"p10" yaml:"p10"`
	P50   float64 `json:"p50" yaml:"p50"`
	P90   float64 `json:"p90" yaml:"p90"`
	Shape Shape   `json:"shape" yaml:"shape"`
}

// Fixed reports whether the estimate collapses to a single value.
func (e Estimate) Fixed() bool {
	return e.P10 == e.P90
}

// Config holds the constants used to derive distribution parameters from an
// Estimate.
type Config struct {
	// PERTLambda weights the mode of the Beta-PERT distribution.
	PERTLambda float64
	// NormalZSpan divides the P10-P90 spread to obtain the normal stdDev.
	NormalZSpan float64
	// NormalFloor clamps unbounded samples from below. Nil permits any value.
	// Estimates whose p50 already lies below the floor are never clamped.
	NormalFloor *float64
}

// DefaultConfig returns the standard constants with normal-like samples floored
// at zero.
func DefaultConfig() Config {
	floor := 0.0
	return Config{
		PERTLambda:  DefaultPERTLambda,
		NormalZSpan: DefaultNormalZSpan,
		NormalFloor: &floor,
	}
}

// Sampler draws impacts from estimates. It holds no random state and is safe for
// concurrent use as long as each goroutine supplies its own Source.
type Sampler struct {
	lambda float64
	zSpan  float64
	floor  *float64
}

// NewSampler builds a Sampler, substituting defaults for non-positive constants.
func NewSampler(cfg Config) *Sampler {
	s := &Sampler{lambda: cfg.PERTLambda, zSpan: cfg.NormalZSpan}
	if s.lambda <= 0 {
		s.lambda = DefaultPERTLambda
	}
	if s.zSpan <= 0 {
		s.zSpan = DefaultNormalZSpan
	}
	if cfg.NormalFloor != nil {
		floor := *cfg.NormalFloor
		s.floor = &floor
	}
	return s
}

// Sample draws one impact value. A fixed estimate returns P10 without consuming
// randomness. Bounded shapes always return a value in [P10, P90]; normal-like
// samples fall outside that interval about 20% of the time (subject to the floor).
func (s *Sampler) Sample(e Estimate, src Source) (float64, error) {
	v, _, err := s.Draw(e, src)
	return v, err
}

// Draw is Sample that also reports whether the floor replaced the drawn value.
func (s *Sampler) Draw(e Estimate, src Source) (float64, bool, error) {
	if e.Fixed() {
		if !e.Shape.Valid() {
			return 0, false, fmt.Errorf("unknown distribution shape %q", e.Shape)
		}
		return e.P10, false, nil
	}

	var v float64
	switch e.Shape {
	case Triangular:
		v = triangular(e.P10, e.P50, e.P90, src.Float64())
	case PERT:
		v = s.pert(e, src)
	case Uniform:
		v = e.P10 + src.Float64()*(e.P90-e.P10)
	case NormalLike:
		v = s.normal(e, src)
	default:
		return 0, false, fmt.Errorf("unknown distribution shape %q", e.Shape)
	}

	if !s.Floors(e) || v >= *s.floor {
		return v, false, nil
	}
	return *s.floor, true, nil
}

// Floors reports whether samples of e are subject to the floor. An estimate
// centred below the floor describes a deliberate saving and keeps its tail.
func (s *Sampler) Floors(e Estimate) bool {
	return s.floor != nil && !e.Shape.Bounded() && e.P50 >= *s.floor
}

// triangular applies the inverse CDF of Triangular(min, mode, max) to u.
func triangular(min, mode, max, u float64) float64 {
	span := max - min
	if u < (mode-min)/span {
		return min + math.Sqrt(u*span*(mode-min))
	}
	return max - math.Sqrt((1-u)*span*(max-mode))
}

func (s *Sampler) pert(e Estimate, src Source) float64 {
	span := e.P90 - e.P10
	alpha := 1 + s.lambda*(e.P50-e.P10)/span
	beta := 1 + s.lambda*(e.P90-e.P50)/span
	x := betaVariate(alpha, beta, src)
	v := e.P10 + x*span
	// Guard against rounding pushing the rescaled value past an anchor.
	return mathutil.Clamp(v, e.P10, e.P90)
}

func (s *Sampler) normal(e Estimate, src Source) float64 {
	stdDev := (e.P90 - e.P10) / s.zSpan
	return e.P50 + stdDev*src.NormFloat64()
}

// betaVariate draws Beta(alpha, beta) as X/(X+Y) with independent gamma draws.
func betaVariate(alpha, beta float64, src Source) float64 {
	x := gammaVariate(alpha, src)
	y := gammaVariate(beta, src)
	return x / (x + y)
}

// gammaVariate draws Gamma(shape, 1) using Marsaglia and Tsang's method. Shapes
// below one are boosted by one and corrected with a uniform power.
func gammaVariate(shape float64, src Source) float64 {
	if shape < 1 {
		u := src.Float64()
		return gammaVariate(shape+1, src) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := src.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := src.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
