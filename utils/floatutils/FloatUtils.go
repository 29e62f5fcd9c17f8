// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ArgMax returns the index of the maximum value in a slice of float64.
// Ties are broken in favour of the smallest index.
func ArgMax(values ...float64) int {
	max, index := values[0], 0
	for i, value := range values {
		if value > max {
			max = value
			index = i
		}
	}
	return index
}

// MaskedArgMax returns the index of the maximum value in values out of
// all indices i for which legal[i] is true. Ties are broken in favour of
// the smallest index. If no index is legal, the returned bool is false.
func MaskedArgMax(values []float64, legal []bool) (int, bool) {
	index := -1
	max := math.Inf(-1)
	for i, value := range values {
		if !legal[i] {
			continue
		}
		if index < 0 || value > max {
			max = value
			index = i
		}
	}
	return index, index >= 0
}
