package dense

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/poiesic/docrag/core"
)

// Match is one dense search hit.
type Match struct {
	ChunkID core.ChunkID
	Score   float64 // cosine similarity in [-1, 1]
}

// Index is an exact cosine-similarity index over unit vectors.
// Row i holds the vector of chunk i. An Index is immutable once built.
type Index struct {
	dim  int
	rows [][]float32
}

// New builds an index from vectors in chunk id order. Every vector is
// normalized; all must share one dimension.
func New(vectors [][]float32) (*Index, error) {
	idx := &Index{rows: make([][]float32, len(vectors))}
	for i, v := range vectors {
		if i == 0 {
			idx.dim = len(v)
		}
		if len(v) != idx.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				core.ErrDimensionMismatch, i, len(v), idx.dim)
		}
		unit, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		idx.rows[i] = unit
	}
	return idx, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	return len(idx.rows)
}

// Dimension returns the shared vector length, 0 for an empty index.
func (idx *Index) Dimension() int {
	return idx.dim
}

// Vector returns the stored unit vector for id.
func (idx *Index) Vector(id core.ChunkID) ([]float32, bool) {
	if int(id) >= len(idx.rows) {
		return nil, false
	}
	return idx.rows[id], true
}

// Search returns up to k chunks by descending cosine similarity to query,
// ties broken by ascending chunk id. An empty index yields no matches.
func (idx *Index) Search(query []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(idx.rows) == 0 {
		return []Match{}, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			core.ErrDimensionMismatch, len(query), idx.dim)
	}
	q, err := Normalize(query)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(idx.rows))
	for i, row := range idx.rows {
		matches[i] = Match{ChunkID: core.ChunkID(i), Score: dot(q, row)}
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, nil
}

// dot accumulates in float64 so scores are stable across platforms.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
