package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *ChunkRepository) Close() error {
	return nil
}

// ReplaceChunks swaps the stored chunk set in a single transaction.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, chunks []core.Chunk) error {
	if err := core.ValidateChunkSet(chunks); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := putChunks(tx, chunks); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// putChunks replaces every stored chunk with chunks inside tx.
func putChunks(tx *badger.Txn, chunks []core.Chunk) error {
	if err := deletePrefix(tx, []byte(chunkPrefix)); err != nil {
		return err
	}
	for i := range chunks {
		value, err := storage.Marshal(&chunks[i])
		if err != nil {
			return err
		}
		if err := tx.Set(makeChunkKey(chunks[i].ID), value); err != nil {
			return err
		}
	}
	return nil
}

// GetChunks retrieves chunks by id, skipping ids that don't exist.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ChunkID) ([]core.Chunk, error) {
	result := make([]core.Chunk, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			err := getValue(tx, makeChunkKey(id), func(val []byte) error {
				chunk, err := storage.Unmarshal[core.Chunk](val)
				if err != nil {
					return err
				}
				result = append(result, *chunk)
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
	return result, err
}

// AllChunks returns every chunk in id order.
func (r *ChunkRepository) AllChunks(ctx context.Context) ([]core.Chunk, error) {
	var result []core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), func(_, val []byte) error {
			chunk, err := storage.Unmarshal[core.Chunk](val)
			if err != nil {
				return err
			}
			result = append(result, *chunk)
			return nil
		})
	}, false)
	return result, err
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
