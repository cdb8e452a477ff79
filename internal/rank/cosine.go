// Package rank scores embedding vectors against a prompt vector by cosine
// similarity and selects the most relevant entries.
package rank

import "math"

// Cosine returns the cosine similarity dot(a,b)/(||a||*||b||) between two
// vectors. A zero vector or a dimension mismatch yields 0 rather than an
// error; vectors of the same embedding model always share a dimension.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
