package eval

import "github.com/poiesic/docrag/core"

// Ks are the cutoffs reported for recall.
var Ks = []int{1, 3, 5}

// RecallAt is 1 when any of the first k retrieved ids is gold, else 0.
func RecallAt(retrieved []core.ChunkID, gold map[core.ChunkID]bool, k int) float64 {
	for i, id := range retrieved {
		if i >= k {
			break
		}
		if gold[id] {
			return 1
		}
	}
	return 0
}

// ReciprocalRank is 1/rank of the first gold id, or 0 when none is retrieved.
func ReciprocalRank(retrieved []core.ChunkID, gold map[core.ChunkID]bool) float64 {
	for i, id := range retrieved {
		if gold[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
