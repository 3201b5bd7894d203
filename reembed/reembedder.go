package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/storage"
)

// Config holds configuration for embedding runs.
type Config struct {
	// BatchSize is the number of texts per embedder call
	BatchSize int

	// Workers is the number of batches embedded concurrently
	Workers int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// Retry bounds retries of failed embedder calls
	Retry RetryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Workers:        2,
		ReportInterval: 100,
		Retry:          DefaultRetryPolicy(),
	}
}

// Reembedder re-embeds the current chunk set with a given embedding model
// and publishes the result as a new generation.
type Reembedder struct {
	holder   *index.Holder
	store    *index.Store
	cache    storage.EmbeddingCache
	embedder ai.Embedder
	model    string
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReembedder creates a new reembedder. cache may be nil.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(holder *index.Holder, store *index.Store, cache storage.EmbeddingCache,
	embedder ai.Embedder, model string, config *Config, progress io.Writer) (*Reembedder, error) {
	if holder == nil {
		return nil, ErrHolderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		holder:   holder,
		store:    store,
		cache:    cache,
		embedder: embedder,
		model:    model,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reembed"),
	}, nil
}

// Run re-embeds every chunk and publishes the new generation. Chunk ids and
// texts are unchanged. On failure the published snapshot is kept.
func (r *Reembedder) Run(ctx context.Context) (*index.Snapshot, error) {
	return r.holder.Rebuild(ctx, func(ctx context.Context, prev *index.Snapshot) (*index.Snapshot, error) {
		chunks, err := r.currentChunks(ctx, prev)
		if err != nil {
			return nil, err
		}
		generation, err := r.store.NextGeneration(ctx, prev)
		if err != nil {
			return nil, err
		}

		if len(chunks) == 0 {
			fmt.Fprintf(r.progress, "No chunks found in index (0 chunks)\n")
		} else {
			fmt.Fprintf(r.progress, "Re-embedding %d chunks with %s (batch size: %d)\n",
				len(chunks), r.model, r.config.BatchSize)
		}

		vectors, elapsed, err := r.embed(ctx, chunks)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			byHash := make(map[core.ID][]float32, len(chunks))
			for i := range chunks {
				byHash[chunks[i].Hash()] = vectors[i]
			}
			if err := r.cache.PutEmbeddings(ctx, r.model, byHash); err != nil {
				r.logger.Warn("failed to cache embeddings", "err", err)
			}
		}

		snap, err := r.store.Commit(ctx, core.Manifest{Generation: generation, EmbeddingModel: r.model}, chunks, vectors)
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			fmt.Fprintf(r.progress, "Re-embedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
				len(chunks), elapsed.Round(time.Millisecond), float64(len(chunks))/max(elapsed.Seconds(), 1e-9))
		}
		return snap, nil
	})
}

// currentChunks prefers the published snapshot; an invalidated holder
// falls back to the chunk store.
func (r *Reembedder) currentChunks(ctx context.Context, prev *index.Snapshot) ([]core.Chunk, error) {
	if prev != nil && prev.Len() > 0 {
		return prev.Chunks(), nil
	}
	chunks, err := r.store.Chunks.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	return chunks, nil
}

func (r *Reembedder) embed(ctx context.Context, chunks []core.Chunk) ([][]float32, time.Duration, error) {
	pool, err := ants.NewPool(max(1, r.config.Workers))
	if err != nil {
		return nil, 0, err
	}
	defer pool.Release()

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	tracker := NewProgressTracker(r.progress, "chunks", len(texts), r.config.ReportInterval)
	tracker.Start()
	processor := NewBatchProcessor(r.embedder, r.config.Retry, r.config.BatchSize, pool)
	vectors, err := processor.ProcessAll(ctx, texts, tracker)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	if len(texts) > 0 {
		tracker.Finish()
	}
	return vectors, tracker.Elapsed(), nil
}
