package openai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docrag/ai"
)

func TestNewProvider(t *testing.T) {
	t.Run("builds all services", func(t *testing.T) {
		p, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
		require.NoError(t, err)
		defer p.Close()

		assert.NotNil(t, p.Embedder())
		assert.NotNil(t, p.Generator())
		assert.NotNil(t, p.RelevanceScorer())
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewProvider(ai.NewConfig(ai.WithHost(""), ai.WithEmbeddingModel("")))
		assert.Error(t, err)
	})

	t.Run("scorer failure leaves reranking unavailable", func(t *testing.T) {
		calls := 0
		failing := func(*ai.Config) (*RelevanceScorer, error) {
			calls++
			return nil, errors.New("connection refused")
		}

		p, err := newProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")), failing)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)

		var provider ai.AIProvider = p
		assert.NotNil(t, provider.Embedder())
		assert.NotNil(t, provider.Generator())
		// Must be an untyped nil so callers' nil checks hold.
		assert.True(t, provider.RelevanceScorer() == nil)
	})
}
