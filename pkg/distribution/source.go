// Package distribution turns three-point risk estimates into sampled impacts and
// decides per-iteration occurrence.
package distribution

import (
	"math/rand/v2"
)

// Source is the narrow random capability the samplers need. *rand.Rand from
// math/rand/v2 satisfies it.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// NormFloat64 returns a standard normal value.
	NormFloat64() float64
}

// NewSource returns a deterministic PCG-backed source. Distinct streams under the
// same seed are independent, which lets iteration shards draw in parallel.
func NewSource(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Occurs is the occurrence gate: one Bernoulli draw with success probability p.
// Exactly one uniform value is consumed on every call, including p == 0 and p == 1,
// so the draw sequence of a run never depends on the probabilities involved.
func Occurs(p float64, src Source) bool {
	return src.Float64() < p
}
