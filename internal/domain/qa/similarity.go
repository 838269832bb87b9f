package qa

import "math"

// CosineSimilarity computes dot(a,b) / (|a|*|b|). A zero norm on either
// side yields 0 rather than dividing by zero.
func CosineSimilarity(a, b Vector) float64 {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < length; i++ {
		dot += a[i] * b[i]
	}
	for _, x := range a {
		normA += x * x
	}
	for _, y := range b {
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// bestMatch returns the index and similarity of the item closest to
// query. Ties resolve to the earliest index, which keeps results
// deterministic. Returns ok=false only for an empty set.
func bestMatch(query Vector, items []indexed) (int, float64, bool) {
	if len(items) == 0 {
		return 0, 0, false
	}
	bestIdx := 0
	bestSim := CosineSimilarity(query, items[0].vector)
	for i := 1; i < len(items); i++ {
		if sim := CosineSimilarity(query, items[i].vector); sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}
	return bestIdx, bestSim, true
}
