package score

import "math"

// Default factor weights.
const (
	defaultSetWeight   = 0.5
	defaultPointWeight = 0.5
	minSetsForScaling  = 3
)

// FactorOption applies a configuration option to the FactorCalculator.
type FactorOption func(*FactorCalculator)

// WithSetWeight sets the weight of the set-differential term.
func WithSetWeight(w float64) FactorOption {
	return func(c *FactorCalculator) {
		if w >= 0 {
			c.setWeight = w
		}
	}
}

// WithPointWeight sets the weight of the point-differential term.
func WithPointWeight(w float64) FactorOption {
	return func(c *FactorCalculator) {
		if w >= 0 {
			c.pointWeight = w
		}
	}
}

// FactorCalculator blends set and point differentials into a multiplier
// amplifying rating movement for dominant wins.
type FactorCalculator struct {
	setWeight   float64
	pointWeight float64
}

// NewFactorCalculator creates a calculator with the configured weights.
func NewFactorCalculator(opts ...FactorOption) *FactorCalculator {
	c := &FactorCalculator{
		setWeight:   defaultSetWeight,
		pointWeight: defaultPointWeight,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factor returns the margin-of-victory multiplier, never below 1.0.
// Walkovers bypass this entirely; the engine forces 1.0 for them.
func (c *FactorCalculator) Factor(winnerSets, loserSets, winnerPoints, loserPoints, numSets int) float64 {
	factor := 1.0

	denom := math.Max(float64(numSets), minSetsForScaling)
	factor += c.setWeight * float64(winnerSets-loserSets) / denom

	total := winnerPoints + loserPoints
	if total > 0 {
		factor += c.pointWeight * float64(winnerPoints-loserPoints) / float64(total)
	}

	if factor < 1.0 {
		return 1.0
	}
	return factor
}
