// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package guardrails

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// MinAnswerChars is the minimum number of non-space characters in a valid answer.
const MinAnswerChars = 10

// PIIPatterns selects which kinds of personal data are redacted.
type PIIPatterns struct {
	Email      bool `yaml:"email"`
	Phone      bool `yaml:"phone"`
	SSN        bool `yaml:"ssn"`
	CreditCard bool `yaml:"credit_card"`
}

// Config holds guardrail settings.
type Config struct {
	BlockedTopics []string    `yaml:"blocked_topics"`
	PIIPatterns   PIIPatterns `yaml:"pii_patterns"`
}

// DefaultConfig redacts every PII kind and blocks no topics.
func DefaultConfig() Config {
	return Config{
		PIIPatterns: PIIPatterns{Email: true, Phone: true, SSN: true, CreditCard: true},
	}
}

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

var (
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)
	phonePattern      = regexp.MustCompile(`(\+?\b1[-.\s]?)?(\(\d{3}\)|\b\d{3})[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

// Guardrails screens questions and post-processes answers.
// It is safe for concurrent use.
type Guardrails struct {
	blocked    []string
	redactions []redaction
	logger     *slog.Logger
}

// Option configures Guardrails.
type Option func(*Guardrails) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guardrails) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// New creates Guardrails from cfg.
func New(cfg Config, opts ...Option) (*Guardrails, error) {
	g := &Guardrails{logger: slog.Default()}
	for _, topic := range cfg.BlockedTopics {
		if t := strings.TrimSpace(topic); t != "" {
			g.blocked = append(g.blocked, t)
		}
	}

	// Longer numeric forms go first so a card or SSN is never half-taken
	// by the phone pattern.
	if cfg.PIIPatterns.Email {
		g.redactions = append(g.redactions, redaction{emailPattern, "[REDACTED_EMAIL]"})
	}
	if cfg.PIIPatterns.CreditCard {
		g.redactions = append(g.redactions, redaction{creditCardPattern, "[REDACTED_CC]"})
	}
	if cfg.PIIPatterns.SSN {
		g.redactions = append(g.redactions, redaction{ssnPattern, "[REDACTED_SSN]"})
	}
	if cfg.PIIPatterns.Phone {
		g.redactions = append(g.redactions, redaction{phonePattern, "[REDACTED_PHONE]"})
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "guardrails")
	return g, nil
}

// CheckQuery returns an error wrapping ErrBlockedTopic when query contains a
// blocked topic, compared case-insensitively.
func (g *Guardrails) CheckQuery(query string) error {
	lower := strings.ToLower(query)
	for _, topic := range g.blocked {
		if strings.Contains(lower, strings.ToLower(topic)) {
			g.logger.Info("query blocked", "topic", topic)
			return fmt.Errorf("%w: %s", ErrBlockedTopic, topic)
		}
	}
	return nil
}

// Redact replaces each enabled kind of PII in text with its placeholder.
func (g *Guardrails) Redact(text string) string {
	for _, r := range g.redactions {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// ValidateAnswer checks that answer has substance and was grounded in at
// least one source.
func (g *Guardrails) ValidateAnswer(answer string, sources int) error {
	n := 0
	for _, r := range answer {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	if n < MinAnswerChars {
		return ErrAnswerTooShort
	}
	if sources == 0 {
		return ErrNoSources
	}
	return nil
}
