package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/reembed"
	"github.com/poiesic/docrag/storage"
)

// Pipeline stores documents and rebuilds the index from them.
// Rebuilds are serialized by the holder.
type Pipeline struct {
	documents      storage.DocumentRepository
	store          *index.Store
	holder         *index.Holder
	cache          storage.EmbeddingCache
	embedder       ai.Embedder
	model          string
	chunker        Chunker
	pool           *ants.Pool
	batchSize      int
	retry          reembed.RetryPolicy
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of embedding batches run concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbeddingCache reuses vectors for chunk text embedded by earlier builds.
func WithEmbeddingCache(cache storage.EmbeddingCache) Option {
	return func(p *Pipeline) error {
		p.cache = cache
		return nil
	}
}

// WithChunking sets the word window. Overlap must be less than size.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		c := Chunker{Size: size, Overlap: overlap}
		if err := c.Validate(); err != nil {
			return err
		}
		p.chunker = c
		return nil
	}
}

// WithBatchSize sets the number of texts per embedder call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		p.batchSize = size
		return nil
	}
}

// WithRetryPolicy bounds retries of failed embedder calls.
func WithRetryPolicy(policy reembed.RetryPolicy) Option {
	return func(p *Pipeline) error {
		p.retry = policy
		return nil
	}
}

// WithProgress writes embedding progress to w every interval chunks.
func WithProgress(w io.Writer, interval int) Option {
	return func(p *Pipeline) error {
		p.progress = w
		p.reportInterval = interval
		return nil
	}
}

// NewPipeline creates an ingestion pipeline. Embeddings come from provider
// and are recorded under its embedding model.
func NewPipeline(
	documents storage.DocumentRepository,
	store *index.Store,
	holder *index.Holder,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if holder == nil {
		return nil, ErrHolderRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		documents:      documents,
		store:          store,
		holder:         holder,
		embedder:       provider.Embedder(),
		model:          provider.EmbeddingModel(),
		chunker:        DefaultChunker(),
		batchSize:      reembed.DefaultBatchSize,
		retry:          reembed.DefaultRetryPolicy(),
		progress:       io.Discard,
		reportInterval: 100,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.pool == nil {
		pool, err := ants.NewPool(max(1, runtime.NumCPU()/2))
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// AddDocuments loads every path, stores the documents and rebuilds the
// index. Nothing is stored if any path fails to load. Documents already
// stored under the same path are replaced.
func (p *Pipeline) AddDocuments(ctx context.Context, paths ...string) (*index.Snapshot, error) {
	var docs []*core.Document
	for _, path := range paths {
		loaded, err := LoadPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		if len(loaded) == 0 {
			p.logger.Warn("no documents found", "path", path)
		}
		docs = append(docs, loaded...)
	}

	if len(docs) > 0 {
		if _, err := p.documents.PutDocuments(ctx, docs...); err != nil {
			return nil, fmt.Errorf("storing documents: %w", err)
		}
		p.logger.Info("documents stored", "count", len(docs))
	}
	return p.Rebuild(ctx)
}

// RemoveDocument deletes the document loaded from path and rebuilds the
// index. Returns storage.ErrNotFound if no such document is stored.
func (p *Pipeline) RemoveDocument(ctx context.Context, path string) (*index.Snapshot, error) {
	if err := p.documents.DeleteDocument(ctx, DocumentID(path)); err != nil {
		return nil, fmt.Errorf("removing %s: %w", path, err)
	}
	return p.Rebuild(ctx)
}

// Rebuild indexes every stored document as a new generation and publishes
// it. On failure the published snapshot is kept.
func (p *Pipeline) Rebuild(ctx context.Context) (*index.Snapshot, error) {
	return p.holder.Rebuild(ctx, func(ctx context.Context, prev *index.Snapshot) (*index.Snapshot, error) {
		docs, err := p.documents.AllDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading documents: %w", err)
		}
		chunks := p.chunker.SplitAll(docs)

		generation, err := p.store.NextGeneration(ctx, prev)
		if err != nil {
			return nil, err
		}

		embedder := &embeddingProcessor{
			batch:          reembed.NewBatchProcessor(p.embedder, p.retry, p.batchSize, p.pool),
			cache:          p.cache,
			model:          p.model,
			progress:       p.progress,
			reportInterval: p.reportInterval,
			logger:         p.logger,
		}
		vectors, err := embedder.process(ctx, chunks)
		if err != nil {
			return nil, err
		}

		snap, err := p.store.Commit(ctx, core.Manifest{Generation: generation, EmbeddingModel: p.model}, chunks, vectors)
		if err != nil {
			return nil, err
		}
		p.logger.Info("index rebuilt", "generation", generation, "documents", len(docs), "chunks", len(chunks))
		return snap, nil
	})
}

// Release releases the embedding worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
