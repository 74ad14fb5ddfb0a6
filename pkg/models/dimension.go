package models

import "fmt"

// Dimension is one of the five data quality axes.
type Dimension string

const (
	DimensionCompleteness Dimension = "completeness"
	DimensionUniqueness   Dimension = "uniqueness"
	DimensionConsistency  Dimension = "consistency"
	DimensionValidity     Dimension = "validity"
	DimensionTimeliness   Dimension = "timeliness"
)

// AllDimensions lists the dimensions in canonical order.
var AllDimensions = []Dimension{
	DimensionCompleteness,
	DimensionUniqueness,
	DimensionConsistency,
	DimensionValidity,
	DimensionTimeliness,
}

// dimensionWeights sum to 100.
var dimensionWeights = map[Dimension]int{
	DimensionCompleteness: 25,
	DimensionUniqueness:   10,
	DimensionConsistency:  20,
	DimensionValidity:     20,
	DimensionTimeliness:   25,
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if _, ok := dimensionWeights[d]; !ok {
		return "", fmt.Errorf("unknown dimension %q", s)
	}
	return d, nil
}

// Weight returns the fixed weight of d, or 0 for an unknown dimension.
func (d Dimension) Weight() int {
	return dimensionWeights[d]
}

// DimensionWeights returns a copy of the canonical weight table.
func DimensionWeights() map[Dimension]int {
	out := make(map[Dimension]int, len(dimensionWeights))
	for d, w := range dimensionWeights {
		out[d] = w
	}
	return out
}
