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


package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/evidence"
	"github.com/poiesic/docrag/fusion"
	"github.com/poiesic/docrag/generation"
	"github.com/poiesic/docrag/guardrails"
	"github.com/poiesic/docrag/index/sparse"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/reembed"
	"github.com/poiesic/docrag/rerank"
	"github.com/poiesic/docrag/search"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file read when no path is given.
const DefaultFile = "docrag.yaml"

// AIConfig configures the model services.
type AIConfig struct {
	EmbeddingHost  string  `yaml:"embedding_host"`
	ChatHost       string  `yaml:"chat_host"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	RerankModel    string  `yaml:"rerank_model"`
	APIKey         string  `yaml:"api_key"`
	ContextTokens  int     `yaml:"context_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

// RetrievalConfig configures queries.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	Alpha          float64 `yaml:"alpha"`
	SearchDepth    int     `yaml:"search_depth"`
	SparseFallback bool    `yaml:"sparse_fallback"`
}

// RerankConfig configures the second-stage reranker.
type RerankConfig struct {
	Enabled       bool `yaml:"enabled"`
	CandidatePool int  `yaml:"candidate_pool"`
	Workers       int  `yaml:"workers"`
}

// BM25Config holds the lexical scoring parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// ChunkingConfig sets the word window used at ingestion.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EvidenceConfig bounds explanation text.
type EvidenceConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// EmbeddingConfig tunes bulk embedding.
type EmbeddingConfig struct {
	BatchSize   int `yaml:"batch_size"`
	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`
}

// GenerationConfig tunes answers.
type GenerationConfig struct {
	FollowUps int `yaml:"follow_ups"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	DataDir    string            `yaml:"data_dir"`
	AI         AIConfig          `yaml:"ai"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Rerank     RerankConfig      `yaml:"rerank"`
	BM25       BM25Config        `yaml:"bm25"`
	Chunking   ChunkingConfig    `yaml:"chunking"`
	Evidence   EvidenceConfig    `yaml:"evidence"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Generation GenerationConfig  `yaml:"generation"`
	Guardrails guardrails.Config `yaml:"guardrails"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiCfg := ai.DefaultConfig()
	retry := reembed.DefaultRetryPolicy()
	return &Config{
		DataDir: "data",
		AI: AIConfig{
			EmbeddingHost:  aiCfg.EmbeddingHost,
			ChatHost:       aiCfg.ChatHost,
			EmbeddingModel: aiCfg.EmbeddingModel,
			ChatModel:      aiCfg.ChatModel,
			APIKey:         aiCfg.APIKey,
			ContextTokens:  aiCfg.ContextTokens,
			Temperature:    aiCfg.Temperature,
		},
		Retrieval: RetrievalConfig{
			TopK:        rerank.DefaultTopK,
			Alpha:       fusion.DefaultAlpha,
			SearchDepth: search.DefaultSearchDepth,
		},
		Rerank: RerankConfig{
			Enabled:       true,
			CandidatePool: rerank.DefaultCandidatePool,
			Workers:       4,
		},
		BM25:       BM25Config{K1: sparse.DefaultK1, B: sparse.DefaultB},
		Chunking:   ChunkingConfig{Size: ingestion.DefaultChunkSize, Overlap: ingestion.DefaultChunkOverlap},
		Evidence:   EvidenceConfig{MaxChars: evidence.DefaultMaxChars},
		Embedding:  EmbeddingConfig{BatchSize: reembed.DefaultBatchSize, Workers: 2, MaxAttempts: retry.MaxAttempts},
		Generation: GenerationConfig{FollowUps: generation.MaxFollowUps},
		Guardrails: guardrails.DefaultConfig(),
		Logging:    LoggingConfig{Level: "info", Format: "pretty"},
	}
}

// Load reads path over the defaults and applies DOCRAG_* environment
// variables. An empty path reads DefaultFile when it exists. Keys absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from DOCRAG_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DOCRAG_DATA_DIR":        &c.DataDir,
		"DOCRAG_EMBEDDING_HOST":  &c.AI.EmbeddingHost,
		"DOCRAG_EMBEDDING_MODEL": &c.AI.EmbeddingModel,
		"DOCRAG_CHAT_HOST":       &c.AI.ChatHost,
		"DOCRAG_CHAT_MODEL":      &c.AI.ChatModel,
		"DOCRAG_RERANK_MODEL":    &c.AI.RerankModel,
		"DOCRAG_API_KEY":         &c.AI.APIKey,
		"DOCRAG_LOG_LEVEL":       &c.Logging.Level,
		"DOCRAG_LOG_FORMAT":      &c.Logging.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("DOCRAG_TOP_K"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DOCRAG_TOP_K: %w", err)
		}
		c.Retrieval.TopK = n
	}
	if v, ok := lookup("DOCRAG_ALPHA"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DOCRAG_ALPHA: %w", err)
		}
		c.Retrieval.Alpha = f
	}
	if v, ok := lookup("DOCRAG_RERANK"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DOCRAG_RERANK: %w", err)
		}
		c.Rerank.Enabled = b
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("config: retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if err := fusion.ValidateAlpha(c.Retrieval.Alpha); err != nil {
		return fmt.Errorf("config: retrieval.alpha: %w", err)
	}
	if c.Rerank.CandidatePool < c.Retrieval.TopK {
		return fmt.Errorf("config: rerank.candidate_pool (%d) must be at least top_k (%d)",
			c.Rerank.CandidatePool, c.Retrieval.TopK)
	}
	if c.Retrieval.SearchDepth < c.Rerank.CandidatePool {
		return fmt.Errorf("config: retrieval.search_depth (%d) must be at least rerank.candidate_pool (%d)",
			c.Retrieval.SearchDepth, c.Rerank.CandidatePool)
	}
	if err := c.SparseParams().Validate(); err != nil {
		return fmt.Errorf("config: bm25: %w", err)
	}
	if err := (ingestion.Chunker{Size: c.Chunking.Size, Overlap: c.Chunking.Overlap}).Validate(); err != nil {
		return fmt.Errorf("config: chunking: %w", err)
	}
	if c.Evidence.MaxChars < 1 {
		return fmt.Errorf("config: evidence.max_chars must be positive, got %d", c.Evidence.MaxChars)
	}
	if c.Embedding.MaxAttempts < 1 {
		return fmt.Errorf("config: embedding.max_attempts must be at least 1, got %d", c.Embedding.MaxAttempts)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// AIConfig converts the ai section for provider construction.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithChatHost(c.AI.ChatHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithRerankModel(c.AI.RerankModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithContextTokens(c.AI.ContextTokens),
		ai.WithTemperature(c.AI.Temperature),
	)
}

// SparseParams returns the BM25 parameters.
func (c *Config) SparseParams() sparse.Params {
	return sparse.Params{K1: c.BM25.K1, B: c.BM25.B}
}

// RetryPolicy returns the embedding retry policy.
func (c *Config) RetryPolicy() reembed.RetryPolicy {
	policy := reembed.DefaultRetryPolicy()
	policy.MaxAttempts = c.Embedding.MaxAttempts
	return policy
}

// SearchOptions returns searcher options for the retrieval settings.
func (c *Config) SearchOptions() []search.Option {
	return []search.Option{
		search.WithTopK(c.Retrieval.TopK),
		search.WithAlpha(c.Retrieval.Alpha),
		search.WithSearchDepth(c.Retrieval.SearchDepth),
		search.WithSparseFallback(c.Retrieval.SparseFallback),
		search.WithRerank(c.Rerank.Enabled),
		search.WithCandidatePool(c.Rerank.CandidatePool),
		search.WithRerankWorkers(c.Rerank.Workers),
		search.WithMaxEvidenceChars(c.Evidence.MaxChars),
	}
}

// IngestionOptions returns pipeline options for the chunking and embedding settings.
func (c *Config) IngestionOptions() []ingestion.Option {
	return []ingestion.Option{
		ingestion.WithChunking(c.Chunking.Size, c.Chunking.Overlap),
		ingestion.WithBatchSize(c.Embedding.BatchSize),
		ingestion.WithPoolSize(c.Embedding.Workers),
		ingestion.WithRetryPolicy(c.RetryPolicy()),
	}
}

// ReembedConfig returns the re-embedding settings.
func (c *Config) ReembedConfig() *reembed.Config {
	rc := reembed.DefaultConfig()
	rc.BatchSize = c.Embedding.BatchSize
	rc.Workers = c.Embedding.Workers
	rc.Retry = c.RetryPolicy()
	return rc
}
