package generation

import (
	"fmt"
	"strings"

	"github.com/poiesic/docrag/core"
)

const (
	// ContextCharsPerChunk bounds each context block in the prompt.
	ContextCharsPerChunk = 400

	// BasicMaxTokens is the output budget of questions asked without retrieval.
	BasicMaxTokens = 256

	minOutputTokens = 64
	maxOutputTokens = 256
	promptSlack     = 10
)

// BuildPrompt lays out hits as numbered context blocks followed by the question.
func BuildPrompt(question string, hits []core.Hit) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer using only the context below.\n")
	b.WriteString("Context:\n")
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i, clip(hit.Chunk.Text, ContextCharsPerChunk))
	}
	fmt.Fprintf(&b, "\n\nQuestion: %s\nAnswer:", question)
	return b.String()
}

// BasicPrompt is the prompt used without retrieval.
func BasicPrompt(question string) string {
	return fmt.Sprintf("Question: %s\nAnswer:", question)
}

// MaxTokens budgets the reply to fit the context window, counting prompt
// words as tokens: max(64, min(256, contextTokens - words - 10)).
func MaxTokens(contextTokens int, prompt string) int {
	words := len(strings.Fields(prompt))
	return max(minOutputTokens, min(maxOutputTokens, contextTokens-words-promptSlack))
}

// clip returns at most n bytes of s, cut on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
