package rerank

import "errors"

var (
	// ErrInvalidTopK is returned when top_k is below one.
	ErrInvalidTopK = errors.New("top_k must be at least 1")

	// ErrInvalidCandidatePool is returned when the candidate pool is smaller than top_k.
	ErrInvalidCandidatePool = errors.New("candidate pool must be at least top_k")
)
