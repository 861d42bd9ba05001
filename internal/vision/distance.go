package vision

import "math"

// EuclideanDistance computes the Euclidean distance between two embeddings.
// Embeddings from the face network live roughly in [0, 1] distance space, so
// 1 - distance is usable as a confidence score.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return math.Sqrt(sum)
}

// Confidence maps a Euclidean distance to a [0, 1] confidence score.
// Distances above 1 clamp to zero confidence.
func Confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	return c
}
