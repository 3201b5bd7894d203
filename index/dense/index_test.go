package dense

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("normalizes rows", func(t *testing.T) {
		idx, err := New([][]float32{{3, 4}, {0, 2}})
		require.NoError(t, err)
		v, ok := idx.Vector(0)
		require.True(t, ok)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
		assert.Equal(t, 2, idx.Dimension())
		assert.Equal(t, 2, idx.Len())
	})

	t.Run("rejects mixed dimensions", func(t *testing.T) {
		_, err := New([][]float32{{1, 0}, {1, 0, 0}})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("rejects zero vector", func(t *testing.T) {
		_, err := New([][]float32{{0, 0}})
		assert.ErrorIs(t, err, ErrZeroVector)
	})
}

func TestSearch(t *testing.T) {
	idx, err := New([][]float32{
		{1, 0, 0},
		{0.7, 0.7, 0},
		{0, 1, 0},
		{1, 0, 0}, // duplicate of chunk 0
	})
	require.NoError(t, err)

	t.Run("orders by similarity then id", func(t *testing.T) {
		matches, err := idx.Search([]float32{2, 0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, core.ChunkID(0), matches[0].ChunkID)
		assert.Equal(t, core.ChunkID(3), matches[1].ChunkID)
		assert.Equal(t, core.ChunkID(1), matches[2].ChunkID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("k larger than index", func(t *testing.T) {
		matches, err := idx.Search([]float32{0, 1, 0}, 50)
		require.NoError(t, err)
		assert.Len(t, matches, 4)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := idx.Search([]float32{1, 0}, 1)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := idx.Search([]float32{1, 0, 0}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := New(nil)
	require.NoError(t, err)

	matches, err := idx.Search([]float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveLoad(t *testing.T) {
	idx, err := New([][]float32{{1, 2, 3}, {4, 5, 6}, {-1, 0, 1}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "index", "vectors.bin")
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Dimension(), loaded.Dimension())
	assert.Equal(t, idx.Len(), loaded.Len())
	for i := 0; i < idx.Len(); i++ {
		want, _ := idx.Vector(core.ChunkID(i))
		got, _ := loaded.Vector(core.ChunkID(i))
		assert.Equal(t, want, got)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16+3*3*4), info.Size())
}

func TestRead_Corrupt(t *testing.T) {
	idx, err := New([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = idx.WriteTo(&buf)
	require.NoError(t, err)
	full := buf.Bytes()

	read := func(data []byte) (*Index, error) {
		return Read(bytes.NewReader(data), int64(len(data)))
	}

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte("XXXX"), full[4:]...)
		_, err := read(bad)
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := read(full[:len(full)-3])
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := read(append(append([]byte{}, full...), 0))
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("header count exceeds data", func(t *testing.T) {
		h := make([]byte, headerSize)
		copy(h, fileMagic)
		binary.LittleEndian.PutUint32(h[4:], fileVersion)
		binary.LittleEndian.PutUint32(h[8:], 4)
		binary.LittleEndian.PutUint32(h[12:], 1<<30)
		_, err := read(h)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("header dimension exceeds data", func(t *testing.T) {
		h := append([]byte{}, full...)
		binary.LittleEndian.PutUint32(h[8:], 1<<31)
		_, err := read(h)
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("size smaller than header", func(t *testing.T) {
		_, err := read(full[:10])
		assert.Error(t, err)
	})
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
