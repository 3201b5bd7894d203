package badger

import (
	"path/filepath"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := OpenBackend(path, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestScanAndDeletePrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		for _, k := range []string{"a:1", "a:2", "b:1"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true))

	var seen []string
	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte("a:"), func(key, val []byte) error {
			seen = append(seen, string(key))
			return nil
		})
	}, false))
	assert.Equal(t, []string{"a:1", "a:2"}, seen)

	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		if err := deletePrefix(tx, []byte("a:")); err != nil {
			return err
		}
		return tx.Commit()
	}, true))

	seen = nil
	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, nil, func(key, val []byte) error {
			seen = append(seen, string(key))
			return nil
		})
	}, false))
	assert.Equal(t, []string{"b:1"}, seen)
}
