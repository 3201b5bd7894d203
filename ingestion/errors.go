package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrStoreRequired is returned when an index store is not provided.
	ErrStoreRequired = errors.New("index store required")

	// ErrHolderRequired is returned when a snapshot holder is not provided.
	ErrHolderRequired = errors.New("snapshot holder required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrUnsupportedFileType is returned for files that are neither .txt nor .md.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrInvalidChunking is returned for a chunk size below 1 or an overlap
	// outside [0, size).
	ErrInvalidChunking = errors.New("invalid chunking parameters")
)
