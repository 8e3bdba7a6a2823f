package image

import (
	"math"

	"golang.org/x/xerrors"
)

// Comparator decides whether two samples count as the same color.
// Identical colors must always compare equal.
type Comparator interface {
	Equal(c1 Color, c2 Color) bool
}

var maxDistance = math.Sqrt(255 * 255 * 4)

// ToleranceComparator treats two colors as equal when their Euclidean RGBA
// distance is at most tolerance times the largest possible distance.
type ToleranceComparator struct {
	tolerance float64
	threshold float64
}

func NewToleranceComparator(tolerance float64) (*ToleranceComparator, error) {
	// Written this way round so that NaN is rejected too.
	if !(tolerance >= 0.0 && tolerance <= 1.0) {
		return nil, xerrors.Errorf("tolerance must be between 0.0 and 1.0, got %v: %w", tolerance, ErrInvalidConfiguration)
	}

	return &ToleranceComparator{
		tolerance: tolerance,
		threshold: maxDistance * tolerance,
	}, nil
}

func (c *ToleranceComparator) Tolerance() float64 {
	return c.tolerance
}

func (c *ToleranceComparator) Equal(c1 Color, c2 Color) bool {
	dA := absDiff(c1.A, c2.A)
	dR := absDiff(c1.R, c2.R)
	dG := absDiff(c1.G, c2.G)
	dB := absDiff(c1.B, c2.B)

	distance := math.Sqrt(float64(dA*dA + dR*dR + dG*dG + dB*dB))

	return distance <= c.threshold
}

// ExactComparator reports equality only for bit-identical colors.
type ExactComparator struct{}

func (ExactComparator) Equal(c1 Color, c2 Color) bool {
	return c1 == c2
}

func absDiff(a uint8, b uint8) int {
	if a > b {
		return int(a) - int(b)
	}
	return int(b) - int(a)
}
