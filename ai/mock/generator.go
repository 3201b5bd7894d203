package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/docrag/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, echoes a fixed answer mentioning the prompt length.
	GenerateFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)

	// FollowUpsFunc is called by FollowUps if set.
	FollowUpsFunc func(ctx context.Context, question, answer string, n int) ([]string, error)

	mu          sync.Mutex
	callCount   int
	lastPrompt  string
	lastOptions ai.GenerateOptions
}

var _ ai.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a generator with default canned behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a canned answer unless GenerateFunc is set.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastPrompt = prompt
	m.lastOptions = opts
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return "This is a generated answer based on the provided context.", nil
}

// FollowUps returns n canned questions unless FollowUpsFunc is set.
func (m *MockGenerator) FollowUps(ctx context.Context, question, answer string, n int) ([]string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.FollowUpsFunc != nil {
		return m.FollowUpsFunc(ctx, question, answer, n)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, "What else about "+strings.TrimSuffix(question, "?")+"?")
	}
	return out, nil
}

// CallCount returns the number of calls to any method.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the prompt passed to the most recent Generate call.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// LastOptions returns the options passed to the most recent Generate call.
func (m *MockGenerator) LastOptions() ai.GenerateOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOptions
}
