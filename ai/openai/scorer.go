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


package openai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrMalformedJudgement is returned when the model never produces a parsable score.
var ErrMalformedJudgement = errors.New("malformed relevance judgement")

// RelevanceScorer implements ai.RelevanceScorer by asking a chat model to
// grade each (query, passage) pair on a 0-10 scale.
type RelevanceScorer struct {
	client   llms.Model
	attempts int
	logger   *slog.Logger
}

var _ ai.RelevanceScorer = (*RelevanceScorer)(nil)

// judgement is the JSON shape the model is asked to emit.
type judgement struct {
	Relevance *float64 `json:"relevance"`
}

func newRelevanceScorer(config *ai.Config) (*RelevanceScorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.RerankModel),
	)
	if err != nil {
		return nil, err
	}

	return &RelevanceScorer{
		client:   client,
		attempts: 3,
		logger:   slog.Default().With("component", "openai-scorer"),
	}, nil
}

// NewRelevanceScorer creates a relevance scorer using the provided configuration.
//
// Returns ai.RelevanceScorer interface to enforce abstraction.
func NewRelevanceScorer(config *ai.Config) (ai.RelevanceScorer, error) {
	return newRelevanceScorer(config)
}

// Score grades passage against query. Malformed JSON is retried; transport
// errors are returned immediately.
func (s *RelevanceScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildRelevancePrompt(query, passage))},
		},
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			s.logger.Error("failed to generate relevance judgement", "attempt", attempt+1, "err", err)
			return 0, err
		}
		if len(response.Choices) < 1 {
			lastErr = ErrMalformedJudgement
			continue
		}

		var j judgement
		raw := extractJSONObject(response.Choices[0].Content)
		if err := json.Unmarshal([]byte(raw), &j); err != nil || j.Relevance == nil {
			lastErr = ErrMalformedJudgement
			s.logger.Warn("error parsing relevance judgement", "attempt", attempt+1, "response", raw)
			continue
		}
		return clampScore(*j.Relevance), nil
	}
	return 0, lastErr
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}
