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


// Package docrag is a hybrid retrieval engine for local document corpora.
//
// An Engine owns the on-disk state under one data directory: the badger
// store at <dataDir>/db and one vector file per generation under <dataDir>/index.
// It publishes the current index snapshot and hands out the components that
// query, grow and explain it.
package docrag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/openai"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/eval"
	"github.com/poiesic/docrag/generation"
	"github.com/poiesic/docrag/guardrails"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/reembed"
	"github.com/poiesic/docrag/search"
	"github.com/poiesic/docrag/storage"
	"github.com/poiesic/docrag/storage/badger"
)

type Engine struct {
	dataDir  string
	cfg      *config.Config
	repos    *badger.Repositories
	store    *index.Store
	holder   *index.Holder
	provider ai.AIProvider
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cfg      *config.Config
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithConfig sets the configuration. Default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) {
		o.cfg = cfg
	}
}

// WithProvider injects the AI provider instead of building an
// OpenAI-compatible one from the configuration. The engine closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open opens or creates the engine state under dataDir, which defaults to
// the configured data directory. A persisted index that fails to load leaves
// the engine open with queries returning core.ErrIndexUnavailable until the
// next rebuild.
func Open(dataDir string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		cfg:    config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if dataDir == "" {
		dataDir = options.cfg.DataDir
	}
	logger := options.logger.With("component", "engine")

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	repos, err := badger.OpenRepositories(filepath.Join(dataDir, "db"), false)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.cfg.AIConfig())
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	e := &Engine{
		dataDir: dataDir,
		cfg:     options.cfg,
		repos:   repos,
		store: &index.Store{
			Chunks:    repos.Chunks,
			Manifests: repos.Manifests,
			Dir:       index.VectorDir(dataDir),
			Params:    options.cfg.SparseParams(),
		},
		holder:   index.NewHolder(index.WithHolderLogger(options.logger)),
		provider: provider,
		logger:   logger,
	}

	snap, err := e.store.Load(context.Background())
	if err != nil {
		logger.Warn("index unavailable, rebuild required", "err", err)
		e.holder.Invalidate(err)
		return e, nil
	}
	e.holder.Publish(snap)
	if model := snap.Manifest().EmbeddingModel; snap.Len() > 0 && model != provider.EmbeddingModel() {
		logger.Warn("index was embedded with a different model; re-embed before querying",
			"index_model", model, "configured_model", provider.EmbeddingModel())
	}
	return e, nil
}

// Close releases the provider and the store.
func (e *Engine) Close() error {
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.repos.Close(); err != nil {
		e.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

// DataDir returns the engine's data directory.
func (e *Engine) DataDir() string {
	return e.dataDir
}

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Provider returns the AI provider.
func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

// Snapshot returns the published index snapshot.
func (e *Engine) Snapshot() (*index.Snapshot, error) {
	return e.holder.Current()
}

func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.repos.Documents
}

func (e *Engine) ChunkRepository() storage.ChunkRepository {
	return e.repos.Chunks
}

func (e *Engine) ManifestRepository() storage.ManifestRepository {
	return e.repos.Manifests
}

func (e *Engine) HistoryRepository() storage.HistoryRepository {
	return e.repos.History
}

// NewSearcher creates a searcher with the configured retrieval settings;
// opts are applied after them.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	all := append(e.cfg.SearchOptions(), search.WithLogger(e.logger))
	return search.NewSearcher(e.holder, e.provider, append(all, opts...)...)
}

// NewIngestionPipeline creates a pipeline that shares the engine's
// embedding cache and publishes to its snapshot holder.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	all := append(e.cfg.IngestionOptions(),
		ingestion.WithEmbeddingCache(e.repos.Embeddings),
		ingestion.WithLogger(e.logger),
	)
	return ingestion.NewPipeline(e.repos.Documents, e.store, e.holder, e.provider, append(all, opts...)...)
}

// NewAnswerer creates an answerer over retriever with the configured
// guardrails, recording exchanges in the history repository.
func (e *Engine) NewAnswerer(retriever generation.Retriever, opts ...generation.Option) (*generation.Answerer, error) {
	guard, err := guardrails.New(e.cfg.Guardrails, guardrails.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	all := []generation.Option{
		generation.WithGuardrails(guard),
		generation.WithHistory(e.repos.History),
		generation.WithContextTokens(e.cfg.AI.ContextTokens),
		generation.WithTemperature(e.cfg.AI.Temperature),
		generation.WithFollowUps(e.cfg.Generation.FollowUps),
		generation.WithLogger(e.logger),
	}
	return generation.NewAnswerer(retriever, e.provider.Generator(), append(all, opts...)...)
}

// NewReembedder creates a reembedder that re-embeds the index with
// provider's embedding model. A nil provider uses the engine's.
func (e *Engine) NewReembedder(provider ai.AIProvider, progress io.Writer) (*reembed.Reembedder, error) {
	if provider == nil {
		provider = e.provider
	}
	if provider.Embedder() == nil {
		return nil, fmt.Errorf("provider has no embedder: %w", reembed.ErrEmbedderRequired)
	}
	return reembed.NewReembedder(e.holder, e.store, e.repos.Embeddings, provider.Embedder(),
		provider.EmbeddingModel(), e.cfg.ReembedConfig(), progress)
}

// NewEvaluator creates an evaluator using the configured hybrid alpha.
func (e *Engine) NewEvaluator(opts ...eval.Option) (*eval.Evaluator, error) {
	all := []eval.Option{eval.WithHybridAlpha(e.cfg.Retrieval.Alpha), eval.WithLogger(e.logger)}
	return eval.NewEvaluator(e.holder, e.provider, append(all, opts...)...)
}
