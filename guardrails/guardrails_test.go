package guardrails

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardrails(t *testing.T, cfg Config) *Guardrails {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func TestCheckQuery(t *testing.T) {
	g := newGuardrails(t, Config{BlockedTopics: []string{"Weapons", "  ", "medical advice"}})

	tests := []struct {
		query   string
		blocked bool
	}{
		{query: "how does BM25 work?", blocked: false},
		{query: "tell me about WEAPONS", blocked: true},
		{query: "I need medical advice now", blocked: true},
		{query: "medical records", blocked: false},
		{query: "", blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			err := g.CheckQuery(tt.query)
			if tt.blocked {
				assert.ErrorIs(t, err, ErrBlockedTopic)
				return
			}
			assert.NoError(t, err)
		})
	}

	err := g.CheckQuery("weapons")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Weapons")
}

func TestRedact(t *testing.T) {
	g := newGuardrails(t, DefaultConfig())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "email", in: "write to jane.doe+x@example.co.uk today", want: "write to [REDACTED_EMAIL] today"},
		{name: "phone dashed", in: "call 555-123-4567.", want: "call [REDACTED_PHONE]."},
		{name: "phone parenthesized", in: "call (555) 123-4567", want: "call [REDACTED_PHONE]"},
		{name: "phone with country code", in: "call +1 555 123 4567", want: "call [REDACTED_PHONE]"},
		{name: "ssn", in: "ssn 123-45-6789 on file", want: "ssn [REDACTED_SSN] on file"},
		{name: "credit card", in: "card 4111 1111 1111 1111 expires", want: "card [REDACTED_CC] expires"},
		{name: "credit card compact", in: "card 4111111111111111", want: "card [REDACTED_CC]"},
		{name: "nothing", in: "BM25 uses k1 = 1.5", want: "BM25 uses k1 = 1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Redact(tt.in))
		})
	}
}

func TestRedact_PatternsIndividuallyEnabled(t *testing.T) {
	text := "mail a@b.io or call 555-123-4567"

	onlyEmail := newGuardrails(t, Config{PIIPatterns: PIIPatterns{Email: true}})
	assert.Equal(t, "mail [REDACTED_EMAIL] or call 555-123-4567", onlyEmail.Redact(text))

	onlyPhone := newGuardrails(t, Config{PIIPatterns: PIIPatterns{Phone: true}})
	assert.Equal(t, "mail a@b.io or call [REDACTED_PHONE]", onlyPhone.Redact(text))

	none := newGuardrails(t, Config{})
	assert.Equal(t, text, none.Redact(text))
}

func TestValidateAnswer(t *testing.T) {
	g := newGuardrails(t, Config{})

	assert.NoError(t, g.ValidateAnswer("BM25 ranks by term frequency.", 2))
	assert.ErrorIs(t, g.ValidateAnswer("", 1), ErrAnswerTooShort)
	assert.ErrorIs(t, g.ValidateAnswer("  a b c d e f g h i  ", 1), ErrAnswerTooShort)
	assert.NoError(t, g.ValidateAnswer("a b c d e f g h i j", 1))
	assert.ErrorIs(t, g.ValidateAnswer("a long enough answer", 0), ErrNoSources)
}
