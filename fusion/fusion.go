package fusion

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index/dense"
	"github.com/poiesic/docrag/index/sparse"
)

// DefaultAlpha weights dense similarity over lexical overlap.
const DefaultAlpha = 0.65

// ErrInvalidAlpha is returned for alpha outside [0, 1].
var ErrInvalidAlpha = errors.New("alpha must be within [0, 1]")

// ValidateAlpha checks alpha is a usable weight.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidAlpha, alpha)
	}
	return nil
}

// Fuse combines both result lists over the union of their chunk ids.
func Fuse(denseMatches []dense.Match, sparseMatches []sparse.Match, alpha float64) ([]core.ScoredCandidate, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, err
	}

	byID := make(map[core.ChunkID]*core.ScoredCandidate, len(denseMatches)+len(sparseMatches))
	order := make([]core.ChunkID, 0, len(denseMatches)+len(sparseMatches))
	candidate := func(id core.ChunkID) *core.ScoredCandidate {
		c, ok := byID[id]
		if !ok {
			c = &core.ScoredCandidate{ChunkID: id}
			byID[id] = c
			order = append(order, id)
		}
		return c
	}

	denseNorm := newScaler(denseMatches, func(m dense.Match) float64 { return m.Score })
	for _, m := range denseMatches {
		c := candidate(m.ChunkID)
		c.DenseScore = m.Score
		c.NormDense = denseNorm.scale(m.Score)
	}
	sparseNorm := newScaler(sparseMatches, func(m sparse.Match) float64 { return m.Score })
	for _, m := range sparseMatches {
		c := candidate(m.ChunkID)
		c.SparseScore = m.Score
		c.NormSparse = sparseNorm.scale(m.Score)
	}

	fused := make([]core.ScoredCandidate, 0, len(order))
	for _, id := range order {
		c := byID[id]
		c.FusedScore = alpha*c.NormDense + (1-alpha)*c.NormSparse
		c.RerankScore = c.FusedScore
		fused = append(fused, *c)
	}
	Sort(fused)
	return fused, nil
}

// Sort orders candidates by fused score, raw dense score, then chunk id.
func Sort(candidates []core.ScoredCandidate) {
	slices.SortFunc(candidates, compare)
}

func compare(a, b core.ScoredCandidate) int {
	if c := cmp.Compare(b.FusedScore, a.FusedScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.DenseScore, a.DenseScore); c != 0 {
		return c
	}
	return cmp.Compare(a.ChunkID, b.ChunkID)
}

// scaler is min-max normalization over one side's scores.
type scaler struct {
	min, span float64
}

func newScaler[M any](matches []M, score func(M) float64) scaler {
	if len(matches) == 0 {
		return scaler{}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range matches {
		s := score(m)
		lo = min(lo, s)
		hi = max(hi, s)
	}
	return scaler{min: lo, span: hi - lo}
}

// scale maps into [0, 1]. A side whose scores are all equal maps to 0.
func (s scaler) scale(v float64) float64 {
	if s.span == 0 {
		return 0
	}
	return (v - s.min) / s.span
}
