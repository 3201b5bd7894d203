package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
)

// MockRelevanceScorer is a test double for ai.RelevanceScorer.
type MockRelevanceScorer struct {
	// ScoreFunc is called by Score if set.
	// If nil, the score is the number of query tokens found in the passage.
	ScoreFunc func(ctx context.Context, query, passage string) (float64, error)

	mu        sync.Mutex
	callCount int
}

var _ ai.RelevanceScorer = (*MockRelevanceScorer)(nil)

// NewMockRelevanceScorer creates a scorer with default overlap behavior.
func NewMockRelevanceScorer() *MockRelevanceScorer {
	return &MockRelevanceScorer{}
}

// Score returns a deterministic relevance score.
func (m *MockRelevanceScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, query, passage)
	}

	present := make(map[string]bool)
	for _, tok := range core.Tokenize(passage) {
		present[tok] = true
	}
	var score float64
	for _, tok := range core.Tokenize(query) {
		if present[tok] {
			score++
		}
	}
	return score, nil
}

// CallCount returns the number of Score calls.
func (m *MockRelevanceScorer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
