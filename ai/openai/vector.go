package openai

import "math"

// NormalizeVector scales v to unit L2 norm and returns a new slice.
// Empty and zero-norm vectors are returned unchanged.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sum)

	if magnitude == 0 {
		return v
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// fitDimension pads v with zeros or truncates it to dim.
func fitDimension(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	result := make([]float32, dim)
	copy(result, v)
	return result
}

func zeroVector(dim int) []float32 {
	return make([]float32, dim)
}
