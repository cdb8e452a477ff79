package rank

import "sort"

// Scored pairs a log's position in the input batch with its similarity
// score against the prompt.
type Scored struct {
	Index int
	Score float64
}

// TopN scores every vector against the prompt vector and returns up to n
// entries ordered by descending score. Ties keep original index order so
// results are deterministic. n <= 0 returns nil; n >= len(vectors) returns
// all entries in score order.
//
// This is O(len(vectors) * dimension); batches are bounded upstream by the
// upload size cap, so no indexed search is needed.
func TopN(prompt []float64, vectors [][]float64, n int) []Scored {
	if n <= 0 || len(vectors) == 0 {
		return nil
	}

	scored := make([]Scored, len(vectors))
	for i, v := range vectors {
		scored[i] = Scored{Index: i, Score: Cosine(prompt, v)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if n < len(scored) {
		scored = scored[:n]
	}
	return scored
}
