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


// Package storage provides the storage abstraction layer for docrag.
//
// Repository interfaces decouple persistence from retrieval and ingestion.
// The badger sub-package implements them on an embedded key-value store.
//
// # Constructor Return Type Pattern
//
// Implementation packages return concrete types from their constructors and
// assert interface conformance with var _ checks; consumers accept the
// interfaces defined here.
//
// # Architecture
//
//   - DocumentRepository: source documents, the input of every rebuild
//   - ChunkRepository: the chunk set of the published index generation
//   - EmbeddingCache: vectors keyed by (model, content hash) so rebuilds embed only new text
//   - ManifestRepository: description of the published generation
//   - HistoryRepository: saved question/answer exchanges with a date index
//
// The dense vector file lives beside the store and is owned by the index
// package. Sparse term tables are never persisted.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	chunks := badger.NewChunkRepository(backend)
//
// Tests use in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
package storage
