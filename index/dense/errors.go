package dense

import "errors"

var (
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("k must be at least 1")

	// ErrBadMagic indicates a vector file with an unknown header.
	ErrBadMagic = errors.New("not a vector file")

	// ErrUnsupportedVersion indicates a vector file written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported vector file version")

	// ErrSizeMismatch indicates a vector file whose length disagrees with its header.
	ErrSizeMismatch = errors.New("vector file size does not match header")

	// ErrZeroVector is returned when a vector has no magnitude and cannot be normalized.
	ErrZeroVector = errors.New("zero vector")
)
