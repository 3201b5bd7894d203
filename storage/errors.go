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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested document, chunk or record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed is returned by repositories whose backend has been closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidRange indicates a non-positive history limit or a date range ending before it starts.
	ErrInvalidRange = errors.New("invalid history range")

	// ErrNilManifest is returned when saving a nil manifest.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrSerializationFailed wraps JSON encode and decode failures.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates an id or vector value shorter than its encoding requires.
	ErrTruncatedData = errors.New("truncated data")
)
