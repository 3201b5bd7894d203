package storage

import (
	"context"
	"time"

	"github.com/poiesic/docrag/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// DocumentRepository stores the source documents the corpus is built from.
type DocumentRepository interface {
	Repository

	// PutDocuments inserts or replaces documents keyed by ID.
	// Sets AddedAt if not already set.
	PutDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// AllDocuments returns every stored document ordered by path.
	AllDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error
}

// ChunkRepository stores the chunk set of the current index generation.
type ChunkRepository interface {
	Repository

	// ReplaceChunks atomically replaces the stored chunk set.
	// Chunks must carry dense ids 0..N-1 in order.
	ReplaceChunks(ctx context.Context, chunks []core.Chunk) error

	// GetChunks retrieves chunks by id. Missing ids are skipped.
	GetChunks(ctx context.Context, ids ...core.ChunkID) ([]core.Chunk, error)

	// AllChunks returns every chunk in id order.
	AllChunks(ctx context.Context) ([]core.Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// EmbeddingCache memoizes embeddings by model and content hash.
type EmbeddingCache interface {
	Repository

	// GetEmbeddings returns the cached vectors for the hashes that are present.
	GetEmbeddings(ctx context.Context, model string, hashes ...core.ID) (map[core.ID][]float32, error)

	// PutEmbeddings stores vectors for model.
	PutEmbeddings(ctx context.Context, model string, vectors map[core.ID][]float32) error
}

// ManifestRepository persists the description of the published index generation.
type ManifestRepository interface {
	// SaveManifest replaces the stored manifest.
	SaveManifest(ctx context.Context, manifest *core.Manifest) error

	// CommitGeneration replaces the chunk set and the manifest in one
	// transaction. Chunks must carry dense ids 0..N-1 in order.
	CommitGeneration(ctx context.Context, chunks []core.Chunk, manifest *core.Manifest) error

	// LoadManifest returns the stored manifest.
	// Returns nil, nil if no index has been built.
	LoadManifest(ctx context.Context) (*core.Manifest, error)
}

// HistoryRepository stores saved question/answer exchanges.
type HistoryRepository interface {
	Repository

	// AddQueryRecords stores records, assigning IDs from a sequence.
	// Sets Timestamp to now if zero.
	AddQueryRecords(ctx context.Context, records ...*core.QueryRecord) ([]*core.QueryRecord, error)

	// GetRecentQueryRecords returns up to limit records, most recent first.
	GetRecentQueryRecords(ctx context.Context, limit int) ([]*core.QueryRecord, error)

	// GetQueryRecordsByDateRange returns records with start <= Timestamp < end, oldest first.
	GetQueryRecordsByDateRange(ctx context.Context, start, end time.Time) ([]*core.QueryRecord, error)
}
