// Package vectormath holds the similarity metric shared by every vector index.
package vectormath

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length, or with zero norm, score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push parallel vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}
