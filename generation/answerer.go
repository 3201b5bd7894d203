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


package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/guardrails"
	"github.com/poiesic/docrag/storage"
)

const (
	// StyleRAG marks answers grounded in retrieved chunks.
	StyleRAG = "rag"

	// StyleBasic marks answers produced without retrieval.
	StyleBasic = "basic"

	// MaxFollowUps caps the suggested follow-up questions.
	MaxFollowUps = 3

	// NoSourcesAnswer is returned when retrieval finds nothing.
	NoSourcesAnswer = "No sources found for this question."
)

// Retriever finds evidence for a question. *search.Searcher implements it.
type Retriever interface {
	Search(ctx context.Context, query string) (*core.RetrievalResult, error)
}

// Source is a retrieved chunk cited by an answer.
type Source struct {
	ChunkID  core.ChunkID
	Title    string
	Path     string
	Position int
	Score    float64
	Excerpt  string
	Text     string
}

// Answer is the outcome of one question.
type Answer struct {
	QueryID   string
	Question  string
	Text      string
	Style     string
	Sources   []Source
	FollowUps []string
	Warnings  []string
	Degraded  bool
	Blocked   bool
}

// Answerer turns questions into grounded answers.
// It is safe for concurrent use.
type Answerer struct {
	retriever     Retriever
	generator     ai.Generator
	guard         *guardrails.Guardrails
	history       storage.HistoryRepository
	contextTokens int
	temperature   float64
	followUps     int
	logger        *slog.Logger
}

// Option configures an Answerer.
type Option func(*Answerer) error

// WithGuardrails screens questions and redacts answers. Default is none.
func WithGuardrails(g *guardrails.Guardrails) Option {
	return func(a *Answerer) error {
		a.guard = g
		return nil
	}
}

// WithHistory records every exchange. Default is none.
func WithHistory(history storage.HistoryRepository) Option {
	return func(a *Answerer) error {
		a.history = history
		return nil
	}
}

// WithContextTokens sets the generator's context window. Default is 2048.
func WithContextTokens(n int) Option {
	return func(a *Answerer) error {
		if n < 1 {
			return fmt.Errorf("context tokens must be positive, got %d", n)
		}
		a.contextTokens = n
		return nil
	}
}

// WithTemperature sets the generation temperature. Default is 0.2.
func WithTemperature(t float64) Option {
	return func(a *Answerer) error {
		a.temperature = t
		return nil
	}
}

// WithFollowUps sets how many follow-up questions to suggest, at most
// MaxFollowUps. Zero disables them. Default is MaxFollowUps.
func WithFollowUps(n int) Option {
	return func(a *Answerer) error {
		a.followUps = min(max(n, 0), MaxFollowUps)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnswerer creates an answerer.
func NewAnswerer(retriever Retriever, generator ai.Generator, opts ...Option) (*Answerer, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	a := &Answerer{
		retriever:     retriever,
		generator:     generator,
		contextTokens: 2048,
		temperature:   0.2,
		followUps:     MaxFollowUps,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "answerer")
	return a, nil
}

// Ask answers question from retrieved chunks. A blocked question yields an
// Answer with Blocked set and no error. Retrieval and generation errors are
// returned.
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	answer := &Answer{QueryID: uuid.NewString(), Question: question, Style: StyleRAG}
	if a.blocked(answer) {
		a.record(ctx, answer)
		return answer, nil
	}

	result, err := a.retriever.Search(ctx, question)
	if err != nil {
		return nil, err
	}
	answer.QueryID = result.QueryID
	answer.Degraded = result.Degraded
	answer.Warnings = append(answer.Warnings, result.DegradedReasons...)

	if result.Empty() {
		answer.Text = NoSourcesAnswer
		answer.Warnings = append(answer.Warnings, guardrails.ErrNoSources.Error())
		a.record(ctx, answer)
		return answer, nil
	}

	answer.Sources = sources(result.Hits)
	prompt := BuildPrompt(question, result.Hits)
	maxTokens := MaxTokens(a.contextTokens, prompt)
	a.logger.Debug("generating answer", "query_id", answer.QueryID,
		"prompt_words", len(strings.Fields(prompt)), "max_tokens", maxTokens)

	text, err := a.generate(ctx, prompt, maxTokens)
	if err != nil {
		return nil, err
	}
	answer.Text = a.redact(text)
	if a.guard != nil {
		if err := a.guard.ValidateAnswer(answer.Text, len(answer.Sources)); err != nil {
			answer.Warnings = append(answer.Warnings, err.Error())
		}
	}

	a.suggest(ctx, answer)
	a.record(ctx, answer)
	return answer, nil
}

// Basic asks the generator directly, without retrieval.
func (a *Answerer) Basic(ctx context.Context, question string) (*Answer, error) {
	answer := &Answer{QueryID: uuid.NewString(), Question: question, Style: StyleBasic}
	if a.blocked(answer) {
		a.record(ctx, answer)
		return answer, nil
	}

	text, err := a.generate(ctx, BasicPrompt(question), BasicMaxTokens)
	if err != nil {
		return nil, err
	}
	answer.Text = a.redact(text)
	a.record(ctx, answer)
	return answer, nil
}

func (a *Answerer) blocked(answer *Answer) bool {
	if a.guard == nil {
		return false
	}
	err := a.guard.CheckQuery(answer.Question)
	if err == nil {
		return false
	}
	answer.Blocked = true
	answer.Text = err.Error()
	return true
}

func (a *Answerer) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	text, err := a.generator.Generate(ctx, prompt, ai.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return strings.TrimSpace(text), nil
}

func (a *Answerer) redact(text string) string {
	if a.guard == nil {
		return text
	}
	return a.guard.Redact(text)
}

// suggest attaches follow-up questions. Failures become warnings.
func (a *Answerer) suggest(ctx context.Context, answer *Answer) {
	if a.followUps == 0 {
		return
	}
	questions, err := a.generator.FollowUps(ctx, answer.Question, answer.Text, a.followUps)
	if err != nil {
		a.logger.Warn("follow-up generation failed", "query_id", answer.QueryID, "err", err)
		answer.Warnings = append(answer.Warnings, "follow-up questions unavailable")
		return
	}
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" && len(answer.FollowUps) < a.followUps {
			answer.FollowUps = append(answer.FollowUps, a.redact(q))
		}
	}
}

// record appends the exchange to history. Failures are logged only.
func (a *Answerer) record(ctx context.Context, answer *Answer) {
	if a.history == nil {
		return
	}
	rec := &core.QueryRecord{
		QueryID:   answer.QueryID,
		Timestamp: time.Now().UTC(),
		Question:  answer.Question,
		Answer:    answer.Text,
		Style:     answer.Style,
		FollowUps: answer.FollowUps,
		Warnings:  answer.Warnings,
		Degraded:  answer.Degraded,
		Blocked:   answer.Blocked,
	}
	for _, s := range answer.Sources {
		rec.Sources = append(rec.Sources, core.SourceRecord{
			Title:    s.Title,
			Path:     s.Path,
			Position: s.Position,
			Score:    s.Score,
			Excerpt:  s.Excerpt,
			Text:     s.Text,
		})
	}
	if _, err := a.history.AddQueryRecords(ctx, rec); err != nil {
		a.logger.Warn("failed to record query", "query_id", answer.QueryID, "err", err)
	}
}

func sources(hits []core.Hit) []Source {
	out := make([]Source, len(hits))
	for i, hit := range hits {
		out[i] = Source{
			ChunkID:  hit.Chunk.ID,
			Title:    hit.Chunk.SourceTitle,
			Path:     hit.Chunk.SourcePath,
			Position: hit.Chunk.Position,
			Score:    hit.Candidate.RerankScore,
			Excerpt:  hit.Evidence.MatchedText,
			Text:     hit.Chunk.Text,
		}
	}
	return out
}
