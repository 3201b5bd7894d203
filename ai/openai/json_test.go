package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare object", in: `{"relevance": 7}`, want: `{"relevance": 7}`},
		{name: "fenced", in: "```json\n{\"relevance\": 3}\n```", want: `{"relevance": 3}`},
		{name: "chatter around", in: `Sure! {"relevance": 9} hope that helps`, want: `{"relevance": 9}`},
		{name: "no object", in: "  nothing here ", want: "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONObject(tt.in))
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-2))
	assert.Equal(t, 10.0, clampScore(12))
	assert.Equal(t, 6.5, clampScore(6.5))
}

func TestBuildRelevancePrompt_TruncatesPassage(t *testing.T) {
	long := make([]byte, maxPassageChars*2)
	for i := range long {
		long[i] = 'a'
	}
	prompt := buildRelevancePrompt("q", string(long))
	assert.Less(t, len(prompt), maxPassageChars+len(relevancePromptTemplate)+10)
}
