package ai

import "context"

// Embedder generates vector embeddings from text.
// The same Embedder must serve ingestion and queries so vector spaces match.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// RelevanceScorer judges how relevant a passage is to a query.
// Higher is more relevant; no range is assumed beyond that.
// Implementations must be thread-safe for concurrent use.
type RelevanceScorer interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// Generator produces free text from a prompt.
type Generator interface {
	// Generate returns the model's completion for prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// FollowUps suggests up to n follow-up questions for a question/answer pair.
	// Returns an empty slice if none can be produced.
	FollowUps(ctx context.Context, question, answer string, n int) ([]string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// RelevanceScorer returns the pairwise relevance scorer.
	// May return nil when no scorer is configured.
	RelevanceScorer() RelevanceScorer

	// Generator returns the answer generation service.
	Generator() Generator

	// EmbeddingModel names the model behind Embedder, recorded in index manifests.
	EmbeddingModel() string

	// Close releases resources held by the provider and its services.
	Close() error
}
