package reembed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestBatchProcessor_Process(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 2, 2}
		}
		return out, nil
	}
	bp := NewBatchProcessor(embedder, fastPolicy(3), 10, nil)

	vectors, err := bp.Process(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		assert.InDelta(t, 1.0, norm(v), 1e-6)
		assert.InDelta(t, 1.0/3.0, v[0], 1e-6)
	}
}

func TestBatchProcessor_ProcessEmpty(t *testing.T) {
	bp := NewBatchProcessor(mock.NewMockEmbedder(), fastPolicy(3), 10, nil)
	vectors, err := bp.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestBatchProcessor_Retry(t *testing.T) {
	var calls atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("temporary error")
		}
		return [][]float32{{1, 0}}, nil
	}
	bp := NewBatchProcessor(embedder, fastPolicy(3), 10, nil)

	vectors, err := bp.Process(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBatchProcessor_Errors(t *testing.T) {
	t.Run("attempts exhausted", func(t *testing.T) {
		boom := errors.New("embedding API error")
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, boom
		}
		bp := NewBatchProcessor(embedder, fastPolicy(2), 10, nil)
		_, err := bp.Process(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, embedder.CallCount())
	})

	t.Run("count mismatch", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}
		bp := NewBatchProcessor(embedder, fastPolicy(1), 10, nil)
		_, err := bp.Process(context.Background(), []string{"a", "b"})
		assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)
	})

	t.Run("zero vector", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{0, 0}}, nil
		}
		bp := NewBatchProcessor(embedder, fastPolicy(1), 10, nil)
		_, err := bp.Process(context.Background(), []string{"a"})
		assert.Error(t, err)
	})
}

func TestBatchProcessor_ProcessAll(t *testing.T) {
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = string(rune('a' + i))
	}

	t.Run("sequential", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		bp := NewBatchProcessor(embedder, fastPolicy(1), 10, nil)
		vectors, err := bp.ProcessAll(context.Background(), texts, nil)
		require.NoError(t, err)
		require.Len(t, vectors, 25)
		assert.Equal(t, 3, embedder.CallCount())
		for i, v := range vectors {
			assert.Equal(t, mock.BagOfWordsVector(texts[i], mock.DefaultDimension), v)
		}
	})

	t.Run("on pool keeps input order", func(t *testing.T) {
		pool, err := ants.NewPool(3)
		require.NoError(t, err)
		defer pool.Release()

		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, batch []string) ([][]float32, error) {
			// Finish later batches first.
			time.Sleep(time.Duration(30-int(batch[0][0]-'a')) * time.Millisecond)
			out := make([][]float32, len(batch))
			for i, text := range batch {
				out[i] = mock.BagOfWordsVector(text, 8)
			}
			return out, nil
		}
		var buf progressBuffer
		tracker := NewProgressTracker(&buf, "chunks", len(texts), 1)
		tracker.Start()

		bp := NewBatchProcessor(embedder, fastPolicy(1), 4, pool)
		vectors, err := bp.ProcessAll(context.Background(), texts, tracker)
		require.NoError(t, err)
		for i, v := range vectors {
			assert.Equal(t, mock.BagOfWordsVector(texts[i], 8), v)
		}
		tracker.Finish()
		assert.Contains(t, buf.String(), "25/25")
	})

	t.Run("first failure wins", func(t *testing.T) {
		pool, err := ants.NewPool(2)
		require.NoError(t, err)
		defer pool.Release()

		boom := errors.New("boom")
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, batch []string) ([][]float32, error) {
			return nil, boom
		}
		bp := NewBatchProcessor(embedder, fastPolicy(1), 5, pool)
		_, err = bp.ProcessAll(context.Background(), texts, nil)
		assert.ErrorIs(t, err, boom)
	})
}
