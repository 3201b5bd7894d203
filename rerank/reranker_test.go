package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fusedCandidates returns n candidates in fused order with descending scores.
func fusedCandidates(n int) ([]core.ScoredCandidate, map[core.ChunkID]string) {
	cands := make([]core.ScoredCandidate, n)
	texts := make(map[core.ChunkID]string, n)
	for i := range cands {
		id := core.ChunkID(i)
		cands[i] = core.ScoredCandidate{ChunkID: id, FusedScore: 1 - float64(i)/float64(n)}
		cands[i].RerankScore = cands[i].FusedScore
		texts[id] = strings.Repeat("x", i+1)
	}
	return cands, texts
}

func chunkIDs(cands []core.ScoredCandidate) []core.ChunkID {
	out := make([]core.ChunkID, len(cands))
	for i, c := range cands {
		out[i] = c.ChunkID
	}
	return out
}

// lengthScorer prefers longer passages, reversing fused order.
func lengthScorer() *mock.MockRelevanceScorer {
	s := mock.NewMockRelevanceScorer()
	s.ScoreFunc = func(ctx context.Context, query, passage string) (float64, error) {
		return float64(len(passage)), nil
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r, err := New(nil)
		require.NoError(t, err)
		defer r.Release()
		assert.Equal(t, DefaultTopK, r.TopK())
		assert.True(t, r.Enabled())
	})

	t.Run("invalid top k", func(t *testing.T) {
		_, err := New(nil, WithTopK(0))
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("pool smaller than top k", func(t *testing.T) {
		_, err := New(nil, WithTopK(5), WithCandidatePool(4))
		assert.ErrorIs(t, err, ErrInvalidCandidatePool)
	})

	t.Run("with workers", func(t *testing.T) {
		r, err := New(nil, WithWorkers(0))
		require.NoError(t, err)
		r.Release()
	})
}

func TestRerank_ReordersHead(t *testing.T) {
	scorer := lengthScorer()
	r, err := New(scorer, WithTopK(3), WithCandidatePool(5), WithWorkers(2))
	require.NoError(t, err)
	defer r.Release()

	cands, texts := fusedCandidates(8)
	out, err := r.Rerank(context.Background(), "q", cands, texts)
	require.NoError(t, err)

	assert.False(t, out.Degraded)
	assert.False(t, out.Bypassed)
	// Only the first five are scored; longest of those wins.
	assert.Equal(t, []core.ChunkID{4, 3, 2}, chunkIDs(out.Candidates))
	assert.Equal(t, 5, scorer.CallCount())
	for _, c := range out.Candidates {
		assert.True(t, c.Reranked)
		assert.Equal(t, float64(len(texts[c.ChunkID])), c.RerankScore)
	}
}

func TestRerank_TiesKeepFusedOrder(t *testing.T) {
	scorer := mock.NewMockRelevanceScorer()
	scorer.ScoreFunc = func(ctx context.Context, query, passage string) (float64, error) {
		return 1, nil
	}
	r, err := New(scorer)
	require.NoError(t, err)
	defer r.Release()

	cands, texts := fusedCandidates(6)
	out, err := r.Rerank(context.Background(), "q", cands, texts)
	require.NoError(t, err)
	assert.Equal(t, []core.ChunkID{0, 1, 2}, chunkIDs(out.Candidates))
}

func TestRerank_DisabledIsBypass(t *testing.T) {
	scorer := lengthScorer()
	r, err := New(scorer, WithEnabled(false))
	require.NoError(t, err)
	defer r.Release()

	cands, texts := fusedCandidates(6)
	out, err := r.Rerank(context.Background(), "q", cands, texts)
	require.NoError(t, err)

	assert.True(t, out.Bypassed)
	assert.False(t, out.Degraded)
	assert.Equal(t, chunkIDs(cands[:3]), chunkIDs(out.Candidates))
	for _, c := range out.Candidates {
		assert.Equal(t, c.FusedScore, c.RerankScore)
		assert.False(t, c.Reranked)
	}
	assert.Zero(t, scorer.CallCount())
}

func TestRerank_NoScorerDegrades(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	defer r.Release()

	cands, texts := fusedCandidates(4)
	out, err := r.Rerank(context.Background(), "q", cands, texts)
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	assert.ErrorIs(t, out.Reason, core.ErrRerankUnavailable)
	assert.Equal(t, []core.ChunkID{0, 1, 2}, chunkIDs(out.Candidates))
}

func TestRerank_ScorerFailureDegrades(t *testing.T) {
	boom := errors.New("model failed to load")
	scorer := mock.NewMockRelevanceScorer()
	scorer.ScoreFunc = func(ctx context.Context, query, passage string) (float64, error) {
		if len(passage) == 2 {
			return 0, boom
		}
		return float64(len(passage)), nil
	}
	r, err := New(scorer)
	require.NoError(t, err)
	defer r.Release()

	cands, texts := fusedCandidates(5)
	out, err := r.Rerank(context.Background(), "q", cands, texts)
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	assert.ErrorIs(t, out.Reason, core.ErrRerankUnavailable)
	assert.ErrorIs(t, out.Reason, boom)
	assert.Equal(t, []core.ChunkID{0, 1, 2}, chunkIDs(out.Candidates))
	for _, c := range out.Candidates {
		assert.Equal(t, c.FusedScore, c.RerankScore)
	}
}

func TestRerank_CancelledContext(t *testing.T) {
	scorer := mock.NewMockRelevanceScorer()
	scorer.ScoreFunc = func(ctx context.Context, query, passage string) (float64, error) {
		return 0, ctx.Err()
	}
	r, err := New(scorer)
	require.NoError(t, err)
	defer r.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cands, texts := fusedCandidates(3)
	_, err = r.Rerank(ctx, "q", cands, texts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRerank_FewerCandidatesThanTopK(t *testing.T) {
	r, err := New(lengthScorer())
	require.NoError(t, err)
	defer r.Release()

	cands, texts := fusedCandidates(2)
	out, err := r.Rerank(context.Background(), "q", cands, texts)
	require.NoError(t, err)
	assert.Equal(t, []core.ChunkID{1, 0}, chunkIDs(out.Candidates))

	out, err = r.Rerank(context.Background(), "q", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Candidates)
}
