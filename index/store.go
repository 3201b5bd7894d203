package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index/dense"
	"github.com/poiesic/docrag/index/sparse"
	"github.com/poiesic/docrag/storage"
)

// VectorDir returns the directory holding vector files under dataDir.
func VectorDir(dataDir string) string {
	return filepath.Join(dataDir, "index")
}

// VectorFileName names the vector file of generation.
func VectorFileName(generation uint64) string {
	return fmt.Sprintf("vectors-%d.bin", generation)
}

// Store persists index generations: chunks and manifest in the repositories,
// vectors in one flat file per generation under Dir. The manifest names the
// live vector file, so saving it is the single commit point. The sparse
// index is never persisted.
type Store struct {
	Chunks    storage.ChunkRepository
	Manifests storage.ManifestRepository
	Dir       string
	Params    sparse.Params
}

// VectorPath returns the vector file the manifest refers to.
func (s *Store) VectorPath(manifest core.Manifest) string {
	return filepath.Join(s.Dir, manifest.VectorFile)
}

// Load reconstructs the persisted generation. A store without a manifest
// yields an empty snapshot. A missing or corrupt vector file, or one that
// disagrees with the manifest or chunk table, yields core.ErrIndexUnavailable.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	manifest, err := s.Manifests.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if manifest == nil {
		return Empty(s.Params)
	}

	all, err := s.Chunks.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}

	if manifest.VectorFile == "" {
		return nil, fmt.Errorf("%w: manifest names no vector file", core.ErrIndexUnavailable)
	}
	denseIdx, err := dense.Load(s.VectorPath(*manifest))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIndexUnavailable, err)
	}
	if denseIdx.Len() != manifest.ChunkCount || len(all) != manifest.ChunkCount {
		return nil, fmt.Errorf("%w: manifest lists %d chunks, store has %d, vector file has %d",
			core.ErrIndexUnavailable, manifest.ChunkCount, len(all), denseIdx.Len())
	}
	if denseIdx.Len() > 0 && denseIdx.Dimension() != manifest.Dimension {
		return nil, fmt.Errorf("%w: vector file has %d dimensions, manifest %d",
			core.ErrIndexUnavailable, denseIdx.Dimension(), manifest.Dimension)
	}
	if core.Fingerprint(all) != manifest.Fingerprint {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, ErrFingerprintMismatch)
	}

	snap, err := NewSnapshot(*manifest, all, denseIdx, s.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	return snap, nil
}

// Commit builds the snapshot for chunks and vectors and persists it.
// Generation and EmbeddingModel come from manifest; the remaining manifest
// fields are derived. The vector file is written under a generation-specific
// name first, then chunks and manifest are stored in one transaction. Until
// that transaction succeeds the previous generation stays loadable; vector
// files of other generations are removed afterwards.
func (s *Store) Commit(ctx context.Context, manifest core.Manifest, chunks []core.Chunk, vectors [][]float32) (*Snapshot, error) {
	denseIdx, err := dense.New(vectors)
	if err != nil {
		return nil, err
	}
	manifest.Fingerprint = core.Fingerprint(chunks)
	manifest.VectorFile = VectorFileName(manifest.Generation)
	manifest.BuiltAt = time.Now().UTC()
	snap, err := NewSnapshot(manifest, chunks, denseIdx, s.Params)
	if err != nil {
		return nil, err
	}

	path := s.VectorPath(manifest)
	if err := denseIdx.Save(path); err != nil {
		return nil, fmt.Errorf("writing vector file: %w", err)
	}
	stored := snap.Manifest()
	if err := s.Manifests.CommitGeneration(ctx, chunks, &stored); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("storing generation %d: %w", manifest.Generation, err)
	}
	s.pruneVectorFiles(manifest.VectorFile)
	return snap, nil
}

// pruneVectorFiles removes vector files other than keep. Failures leave
// stale files behind and are otherwise ignored.
func (s *Store) pruneVectorFiles(keep string) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || e.IsDir() || !strings.HasPrefix(name, "vectors-") || !strings.HasSuffix(name, ".bin") {
			continue
		}
		os.Remove(filepath.Join(s.Dir, name))
	}
}

// NextGeneration returns the generation number following both prev and the
// stored manifest. prev may be nil.
func (s *Store) NextGeneration(ctx context.Context, prev *Snapshot) (uint64, error) {
	var gen uint64
	if prev != nil {
		gen = prev.Generation()
	}
	manifest, err := s.Manifests.LoadManifest(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading manifest: %w", err)
	}
	if manifest != nil {
		gen = max(gen, manifest.Generation)
	}
	return gen + 1, nil
}
