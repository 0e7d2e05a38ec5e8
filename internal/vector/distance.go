package vector

import "gonum.org/v1/gonum/floats"

// EuclideanDistance returns the L2 distance between a and b. Vectors must have equal length.
func EuclideanDistance(a, b []float32) float64 {
	return floats.Distance(toFloat64(a), toFloat64(b), 2)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
