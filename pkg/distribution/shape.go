package distribution

import (
	"fmt"
	"strings"
)

// Shape selects how a three-point estimate is turned into a sampling function.
type Shape string

// Supported shapes. The set is closed; ParseShape rejects anything else.
const (
	Triangular Shape = "triangular"
	PERT       Shape = "pert"
	Uniform    Shape = "uniform"
	NormalLike Shape = "normal-like"
)

// Shapes lists every supported shape in a stable order.
func Shapes() []Shape {
	return []Shape{Triangular, PERT, Uniform, NormalLike}
}

// Valid reports whether s is one of the supported shapes.
func (s Shape) Valid() bool {
	switch s {
	case Triangular, PERT, Uniform, NormalLike:
		return true
	}
	return false
}

// Bounded reports whether every sample of s lies within [p10, p90].
func (s Shape) Bounded() bool {
	return s != NormalLike
}

// ParseShape parses a shape tag. Matching is case-insensitive and tolerates
// surrounding whitespace; "beta-pert" and "normal" are accepted aliases.
func ParseShape(value string) (Shape, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "beta-pert":
		return PERT, nil
	case "normal":
		return NormalLike, nil
	}
	shape := Shape(normalized)
	if !shape.Valid() {
		return "", fmt.Errorf("unknown distribution shape %q", value)
	}
	return shape, nil
}

// NormalizeShape resolves a shape tag as entered by a user. An empty tag
// defaults to Triangular; an unrecognized one is returned unchanged so that
// validation can reject it with the owning risk named.
func NormalizeShape(value string) Shape {
	if strings.TrimSpace(value) == "" {
		return Triangular
	}
	shape, err := ParseShape(value)
	if err != nil {
		return Shape(value)
	}
	return shape
}
