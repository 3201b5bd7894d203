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


package core

import "errors"

// Retrieval errors
var (
	// ErrIndexEmpty indicates no chunks have been ingested.
	// Searches against an empty index return an empty result, not this error.
	ErrIndexEmpty = errors.New("index is empty")

	// ErrIndexUnavailable indicates the index files are missing or corrupt.
	// The index must be rebuilt before retrieval can proceed.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmbeddingFailure indicates the embedding capability returned an error.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrRerankUnavailable indicates the relevance scorer could not be used.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrDimensionMismatch indicates a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates a text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyPath indicates a source path is empty.
	ErrEmptyPath = errors.New("source path cannot be empty")

	// ErrNegativePosition indicates a chunk position below zero.
	ErrNegativePosition = errors.New("position cannot be negative")
)
