package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index/dense"
	"github.com/poiesic/docrag/index/sparse"
	"github.com/poiesic/docrag/storage"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() []core.Chunk {
	return []core.Chunk{
		{ID: 0, Text: "the quick brown fox", SourceTitle: "a", SourcePath: "a.txt"},
		{ID: 1, Text: "jumps over the lazy dog", SourceTitle: "a", SourcePath: "a.txt", Position: 1},
	}
}

func testDense(t *testing.T) *dense.Index {
	t.Helper()
	idx, err := dense.New([][]float32{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, err)
	return idx
}

func TestNewSnapshot(t *testing.T) {
	snap, err := NewSnapshot(core.Manifest{Generation: 4}, testChunks(), testDense(t), sparse.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, uint64(4), snap.Generation())
	assert.Equal(t, 3, snap.Manifest().Dimension)
	assert.Equal(t, 2, snap.Manifest().ChunkCount)
	assert.Equal(t, 2, snap.Sparse().Len())

	c, ok := snap.Chunk(1)
	require.True(t, ok)
	assert.Equal(t, "jumps over the lazy dog", c.Text)
	_, ok = snap.Chunk(2)
	assert.False(t, ok)
}

func TestNewSnapshot_CountMismatch(t *testing.T) {
	one, err := dense.New([][]float32{{1, 0}})
	require.NoError(t, err)

	_, err = NewSnapshot(core.Manifest{}, testChunks(), one, sparse.DefaultParams())
	assert.ErrorIs(t, err, ErrChunkCountMismatch)
}

func TestEmpty(t *testing.T) {
	snap, err := Empty(sparse.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, snap.Dense().Len())
}

func TestHolder(t *testing.T) {
	ctx := context.Background()
	h := NewHolder()

	initial, err := h.Current()
	require.NoError(t, err)
	assert.Equal(t, 0, initial.Len())

	t.Run("successful rebuild publishes", func(t *testing.T) {
		next, err := h.Rebuild(ctx, func(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
			assert.Same(t, initial, prev)
			return NewSnapshot(core.Manifest{Generation: 1}, testChunks(), testDense(t), sparse.DefaultParams())
		})
		require.NoError(t, err)
		cur, err := h.Current()
		require.NoError(t, err)
		assert.Same(t, next, cur)
	})

	t.Run("failed rebuild keeps previous", func(t *testing.T) {
		before, _ := h.Current()
		boom := errors.New("boom")
		_, err := h.Rebuild(ctx, func(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
		after, err := h.Current()
		require.NoError(t, err)
		assert.Same(t, before, after)
	})

	t.Run("nil snapshot rejected", func(t *testing.T) {
		_, err := h.Rebuild(ctx, func(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrNilSnapshot)
	})

	t.Run("invalidate until rebuild", func(t *testing.T) {
		h.Invalidate(core.ErrIndexUnavailable)
		_, err := h.Current()
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)

		_, err = h.Rebuild(ctx, func(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
			assert.Nil(t, prev)
			return Empty(sparse.DefaultParams())
		})
		require.NoError(t, err)
		_, err = h.Current()
		assert.NoError(t, err)
	})
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	h := NewHolder()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				snap, err := h.Current()
				if assert.NoError(t, err) {
					// Every published snapshot is internally consistent.
					assert.Equal(t, snap.Len(), snap.Dense().Len())
				}
			}
		}()
	}
	for gen := uint64(1); gen <= 5; gen++ {
		_, err := h.Rebuild(ctx, func(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
			return NewSnapshot(core.Manifest{Generation: gen}, testChunks(), testDense(t), sparse.DefaultParams())
		})
		require.NoError(t, err)
	}
	wg.Wait()
}

func newStore(t *testing.T) *Store {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return &Store{
		Chunks:    repos.Chunks,
		Manifests: repos.Manifests,
		Dir:       VectorDir(t.TempDir()),
		Params:    sparse.DefaultParams(),
	}
}

func commit(t *testing.T, store *Store) *Snapshot {
	t.Helper()
	snap, err := store.Commit(context.Background(), core.Manifest{Generation: 2, EmbeddingModel: "m"},
		testChunks(), [][]float32{{1, 0, 0}, {0, 1, 0}})
	require.NoError(t, err)
	return snap
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("no manifest yields empty snapshot", func(t *testing.T) {
		snap, err := newStore(t).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.Len())
	})

	t.Run("commit then load", func(t *testing.T) {
		store := newStore(t)
		committed := commit(t, store)
		assert.Equal(t, core.Fingerprint(testChunks()), committed.Manifest().Fingerprint)
		assert.False(t, committed.Manifest().BuiltAt.IsZero())

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), snap.Generation())
		assert.Equal(t, 2, snap.Len())
		assert.Equal(t, 3, snap.Dense().Dimension())
		assert.Equal(t, "m", snap.Manifest().EmbeddingModel)
	})

	t.Run("commit rejects mismatched vectors", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Commit(ctx, core.Manifest{}, testChunks(), [][]float32{{1, 0}})
		assert.ErrorIs(t, err, ErrChunkCountMismatch)

		m, err := store.Manifests.LoadManifest(ctx)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("missing vector file", func(t *testing.T) {
		store := newStore(t)
		snap := commit(t, store)
		require.NoError(t, os.Remove(store.VectorPath(snap.Manifest())))

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	})

	t.Run("corrupt vector file", func(t *testing.T) {
		store := newStore(t)
		snap := commit(t, store)
		require.NoError(t, os.WriteFile(store.VectorPath(snap.Manifest()), []byte("garbage"), 0o644))

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	})

	t.Run("chunks changed after commit", func(t *testing.T) {
		store := newStore(t)
		commit(t, store)
		changed := testChunks()
		changed[0].Text = "something else"
		require.NoError(t, store.Chunks.ReplaceChunks(ctx, changed))

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
		assert.ErrorIs(t, err, ErrFingerprintMismatch)
	})

	t.Run("next generation", func(t *testing.T) {
		store := newStore(t)
		gen, err := store.NextGeneration(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), gen)

		snap := commit(t, store)
		gen, err = store.NextGeneration(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), gen)

		empty, err := Empty(sparse.DefaultParams())
		require.NoError(t, err)
		gen, err = store.NextGeneration(ctx, empty)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), gen)
		assert.Equal(t, uint64(2), snap.Generation())
	})

	t.Run("vector file path layout", func(t *testing.T) {
		assert.Equal(t, filepath.Join("data", "index"), VectorDir("data"))
		assert.Equal(t, "vectors-7.bin", VectorFileName(7))

		store := newStore(t)
		snap := commit(t, store)
		assert.Equal(t, "vectors-2.bin", snap.Manifest().VectorFile)
		assert.FileExists(t, filepath.Join(store.Dir, "vectors-2.bin"))
	})

	t.Run("later commit removes older vector files", func(t *testing.T) {
		store := newStore(t)
		commit(t, store)
		_, err := store.Commit(ctx, core.Manifest{Generation: 3, EmbeddingModel: "m"},
			testChunks(), [][]float32{{0, 0, 1}, {0, 1, 0}})
		require.NoError(t, err)

		assert.NoFileExists(t, filepath.Join(store.Dir, "vectors-2.bin"))
		assert.FileExists(t, filepath.Join(store.Dir, "vectors-3.bin"))
		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), snap.Generation())
	})

	t.Run("failed store write keeps previous generation loadable", func(t *testing.T) {
		store := newStore(t)
		commit(t, store)
		store.Manifests = &failingManifests{ManifestRepository: store.Manifests, err: errors.New("disk full")}

		_, err := store.Commit(ctx, core.Manifest{Generation: 3, EmbeddingModel: "m"},
			testChunks()[:1], [][]float32{{0, 0, 1}})
		require.Error(t, err)
		assert.NoFileExists(t, filepath.Join(store.Dir, "vectors-3.bin"))

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), snap.Generation())
		assert.Equal(t, 2, snap.Len())
	})

	t.Run("manifest without vector file", func(t *testing.T) {
		store := newStore(t)
		snap := commit(t, store)
		m := snap.Manifest()
		m.VectorFile = ""
		require.NoError(t, store.Manifests.SaveManifest(ctx, &m))

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	})
}

// failingManifests fails every generation commit with err.
type failingManifests struct {
	storage.ManifestRepository
	err error
}

func (f *failingManifests) CommitGeneration(context.Context, []core.Chunk, *core.Manifest) error {
	return f.err
}
