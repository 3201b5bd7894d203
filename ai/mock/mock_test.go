package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	v1, err := m.EmbedText(ctx, "hybrid retrieval engine")
	require.NoError(t, err)
	v2, err := m.EmbedText(ctx, "hybrid retrieval engine")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, DefaultDimension)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	v := BagOfWordsVector("one two three", 16)
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	empty := BagOfWordsVector("   ", 16)
	for _, x := range empty {
		assert.Zero(t, x)
	}
}

func TestMockEmbedder_Injected(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("offline")
	}
	_, err := m.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)

	m.Reset()
	out, err := m.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockRelevanceScorer_Overlap(t *testing.T) {
	s := NewMockRelevanceScorer()
	score, err := s.Score(context.Background(), "bm25 ranking", "BM25 is a ranking function")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)
}

func TestMockProvider_NilScorer(t *testing.T) {
	p := NewMockProviderWithServices(NewMockEmbedder(), nil, NewMockGenerator())
	assert.Nil(t, p.RelevanceScorer())
	assert.NotNil(t, p.Embedder())
	assert.Equal(t, "mock-embedding", p.EmbeddingModel())
}
