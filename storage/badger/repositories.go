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

// Repositories bundles every repository over one backend.
type Repositories struct {
	Backend    *Backend
	Documents  *DocumentRepository
	Chunks     *ChunkRepository
	Embeddings *EmbeddingCache
	Manifests  *ManifestRepository
	History    *HistoryRepository
}

// OpenRepositories opens a backend and creates all repositories on it.
func OpenRepositories(filePath string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}
	history, err := NewHistoryRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &Repositories{
		Backend:    backend,
		Documents:  NewDocumentRepository(backend),
		Chunks:     NewChunkRepository(backend),
		Embeddings: NewEmbeddingCache(backend),
		Manifests:  NewManifestRepository(backend),
		History:    history,
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}

// Close releases the history sequence and closes the backend.
func (r *Repositories) Close() error {
	if err := r.History.Close(); err != nil {
		r.Backend.Close()
		return err
	}
	return r.Backend.Close()
}
