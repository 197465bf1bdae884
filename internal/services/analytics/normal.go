package analytics

import "math"

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// TwoSidedContainment is the probability a standard normal stays within ±m.
func TwoSidedContainment(m float64) float64 {
	return NormalCDF(m) - NormalCDF(-m)
}
