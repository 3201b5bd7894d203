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


package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

// ManifestRepository implements storage.ManifestRepository for BadgerDB.
type ManifestRepository struct {
	backend *Backend
}

var _ storage.ManifestRepository = (*ManifestRepository)(nil)

// NewManifestRepository creates a new ManifestRepository.
func NewManifestRepository(backend *Backend) *ManifestRepository {
	return &ManifestRepository{
		backend: backend,
	}
}

// SaveManifest persists the manifest of the published generation.
func (r *ManifestRepository) SaveManifest(ctx context.Context, manifest *core.Manifest) error {
	if manifest == nil {
		return storage.ErrNilManifest
	}
	value, err := storage.Marshal(manifest)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(manifestKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CommitGeneration stores chunks and manifest together. Readers see either
// the previous generation or the new one, never a mix.
func (r *ManifestRepository) CommitGeneration(ctx context.Context, chunks []core.Chunk, manifest *core.Manifest) error {
	if manifest == nil {
		return storage.ErrNilManifest
	}
	if err := core.ValidateChunkSet(chunks); err != nil {
		return err
	}
	value, err := storage.Marshal(manifest)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := putChunks(tx, chunks); err != nil {
			return err
		}
		if err := tx.Set([]byte(manifestKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadManifest retrieves the stored manifest.
// Returns nil, nil if no manifest exists.
func (r *ManifestRepository) LoadManifest(ctx context.Context) (*core.Manifest, error) {
	var manifest *core.Manifest
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return getValue(tx, []byte(manifestKey), func(val []byte) error {
			var err error
			manifest, err = storage.Unmarshal[core.Manifest](val)
			return err
		})
	}, false)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return manifest, err
}
