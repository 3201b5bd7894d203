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
	"log/slog"

	"github.com/poiesic/docrag/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	scorer    *RelevanceScorer
	generator *Generator
	logger    *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use. A relevance scorer
// that cannot be built is logged and left out; the reranker then degrades
// to fused order instead of failing queries.
//
// Returns ai.AIProvider interface (not *Provider) to keep callers off
// OpenAI-specific details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	return newProvider(config, newRelevanceScorer)
}

func newProvider(config *ai.Config, makeScorer func(*ai.Config) (*RelevanceScorer, error)) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "openai-provider")

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	scorer, err := makeScorer(config)
	if err != nil {
		logger.Warn("relevance scorer unavailable, reranking disabled",
			"model", config.RerankModel, "err", err)
		scorer = nil
	}

	generator, err := newGenerator(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		scorer:    scorer,
		generator: generator,
		logger:    logger,
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// RelevanceScorer returns the LLM-backed relevance scorer, or nil when it
// could not be built.
func (p *Provider) RelevanceScorer() ai.RelevanceScorer {
	if p.scorer == nil {
		return nil
	}
	return p.scorer
}

// Generator returns the answer generator.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// EmbeddingModel names the configured embedding model.
func (p *Provider) EmbeddingModel() string {
	return p.config.EmbeddingModel
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
