package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// EmbeddingCache implements storage.EmbeddingCache for BadgerDB.
type EmbeddingCache struct {
	backend *Backend
}

var _ storage.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a new EmbeddingCache.
func NewEmbeddingCache(backend *Backend) *EmbeddingCache {
	return &EmbeddingCache{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (c *EmbeddingCache) Close() error {
	return nil
}

// GetEmbeddings returns cached vectors for the hashes present under model.
func (c *EmbeddingCache) GetEmbeddings(ctx context.Context, model string, hashes ...core.ID) (map[core.ID][]float32, error) {
	found := make(map[core.ID][]float32, len(hashes))
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, hash := range hashes {
			err := getValue(tx, makeEmbeddingKey(model, hash), func(val []byte) error {
				v, err := storage.UnmarshalVector(val)
				if err != nil {
					return err
				}
				found[hash] = v
				return nil
			})
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return found, err
}

// PutEmbeddings stores vectors under model, batching writes.
func (c *EmbeddingCache) PutEmbeddings(ctx context.Context, model string, vectors map[core.ID][]float32) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	wb := c.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for hash, v := range vectors {
		if err := wb.Set(makeEmbeddingKey(model, hash), storage.MarshalVector(v)); err != nil {
			return err
		}
	}
	return wb.Flush()
}
