package index

import (
	"fmt"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index/dense"
	"github.com/poiesic/docrag/index/sparse"
)

// Snapshot is one immutable index generation.
type Snapshot struct {
	manifest core.Manifest
	chunks   []core.Chunk
	dense    *dense.Index
	sparse   *sparse.Index
}

// NewSnapshot assembles a snapshot from chunks in id order and their dense
// index. The sparse index is built here from the chunk text.
func NewSnapshot(manifest core.Manifest, chunks []core.Chunk, denseIdx *dense.Index, params sparse.Params) (*Snapshot, error) {
	if err := core.ValidateChunkSet(chunks); err != nil {
		return nil, err
	}
	if denseIdx == nil {
		var err error
		if denseIdx, err = dense.New(nil); err != nil {
			return nil, err
		}
	}
	if denseIdx.Len() != len(chunks) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrChunkCountMismatch, len(chunks), denseIdx.Len())
	}
	sparseIdx, err := sparse.Build(chunks, params)
	if err != nil {
		return nil, err
	}

	manifest.ChunkCount = len(chunks)
	manifest.Dimension = denseIdx.Dimension()
	return &Snapshot{
		manifest: manifest,
		chunks:   chunks,
		dense:    denseIdx,
		sparse:   sparseIdx,
	}, nil
}

// Empty returns a snapshot with no chunks.
func Empty(params sparse.Params) (*Snapshot, error) {
	return NewSnapshot(core.Manifest{}, nil, nil, params)
}

// Len returns the number of chunks.
func (s *Snapshot) Len() int {
	return len(s.chunks)
}

// Chunk returns the chunk with the given id.
func (s *Snapshot) Chunk(id core.ChunkID) (core.Chunk, bool) {
	if int(id) >= len(s.chunks) {
		return core.Chunk{}, false
	}
	return s.chunks[id], true
}

// Chunks returns the chunk table. Callers must not modify it.
func (s *Snapshot) Chunks() []core.Chunk {
	return s.chunks
}

func (s *Snapshot) Dense() *dense.Index {
	return s.dense
}

func (s *Snapshot) Sparse() *sparse.Index {
	return s.sparse
}

func (s *Snapshot) Manifest() core.Manifest {
	return s.manifest
}

// Generation returns the generation number, 0 for an empty store.
func (s *Snapshot) Generation() uint64 {
	return s.manifest.Generation
}
