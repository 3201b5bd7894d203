package index

import "errors"

var (
	// ErrChunkCountMismatch indicates chunk table and dense index disagree on size.
	ErrChunkCountMismatch = errors.New("chunk count does not match vector count")

	// ErrFingerprintMismatch indicates stored chunks differ from those the manifest was built for.
	ErrFingerprintMismatch = errors.New("chunk fingerprint does not match manifest")

	// ErrNilSnapshot is returned when a rebuild produces no snapshot.
	ErrNilSnapshot = errors.New("rebuild produced no snapshot")
)
