package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/index/sparse"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos  *badger.Repositories
	store  *index.Store
	holder *index.Holder
	chunks []core.Chunk
}

func setupFixture(t *testing.T, n int) *fixture {
	t.Helper()
	ctx := context.Background()

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	store := &index.Store{
		Chunks:    repos.Chunks,
		Manifests: repos.Manifests,
		Dir:       index.VectorDir(t.TempDir()),
		Params:    sparse.DefaultParams(),
	}

	chunks := make([]core.Chunk, n)
	vectors := make([][]float32, n)
	for i := range chunks {
		chunks[i] = core.Chunk{
			ID:          core.ChunkID(i),
			Text:        fmt.Sprintf("passage number %d about retrieval", i),
			SourceTitle: "doc",
			SourcePath:  "doc.txt",
			Position:    i,
		}
		vectors[i] = mock.BagOfWordsVector(chunks[i].Text, 8)
	}

	holder := index.NewHolder()
	if n > 0 {
		snap, err := store.Commit(ctx, core.Manifest{Generation: 1, EmbeddingModel: "old-model"}, chunks, vectors)
		require.NoError(t, err)
		holder.Publish(snap)
	}
	return &fixture{repos: repos, store: store, holder: holder, chunks: chunks}
}

func TestNewReembedder_Validation(t *testing.T) {
	f := setupFixture(t, 0)
	emb := mock.NewMockEmbedder()

	_, err := NewReembedder(nil, f.store, nil, emb, "m", nil, nil)
	assert.ErrorIs(t, err, ErrHolderRequired)

	_, err = NewReembedder(f.holder, nil, nil, emb, "m", nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewReembedder(f.holder, f.store, nil, nil, "m", nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewReembedder(f.holder, f.store, nil, emb, "m", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.config.BatchSize)
}

func TestReembedder_Run(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, 150)

	emb := mock.NewMockEmbedder()
	var out bytes.Buffer
	config := &Config{BatchSize: 32, Workers: 3, ReportInterval: 50, Retry: fastPolicy(2)}
	r, err := NewReembedder(f.holder, f.store, f.repos.Embeddings, emb, "new-model", config, &out)
	require.NoError(t, err)

	snap, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), snap.Generation())
	assert.Equal(t, "new-model", snap.Manifest().EmbeddingModel)
	assert.Equal(t, mock.DefaultDimension, snap.Manifest().Dimension)
	assert.Equal(t, 150, snap.Len())
	assert.Equal(t, 5, emb.CallCount())

	current, err := f.holder.Current()
	require.NoError(t, err)
	assert.Same(t, snap, current)

	for i, c := range snap.Chunks() {
		assert.Equal(t, f.chunks[i].Text, c.Text)
		assert.Equal(t, f.chunks[i].ID, c.ID)
	}

	stored, err := f.repos.Manifests.LoadManifest(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "new-model", stored.EmbeddingModel)
	assert.Equal(t, uint64(2), stored.Generation)

	cached, err := f.repos.Embeddings.GetEmbeddings(ctx, "new-model", f.chunks[0].Hash(), f.chunks[149].Hash())
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	reloaded, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, reloaded.Len())
	assert.Equal(t, uint64(2), reloaded.Generation())

	assert.Contains(t, out.String(), "Re-embedding 150 chunks with new-model")
	assert.Contains(t, out.String(), "Re-embedding complete")
}

func TestReembedder_RunTwiceIncrementsGeneration(t *testing.T) {
	f := setupFixture(t, 3)
	r, err := NewReembedder(f.holder, f.store, nil, mock.NewMockEmbedder(), "m", nil, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.Generation())
}

func TestReembedder_EmptyIndex(t *testing.T) {
	f := setupFixture(t, 0)
	var out bytes.Buffer
	r, err := NewReembedder(f.holder, f.store, nil, mock.NewMockEmbedder(), "m", nil, &out)
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.Contains(t, out.String(), "No chunks found")
}

func TestReembedder_EmbeddingFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t, 10)
	before, err := f.holder.Current()
	require.NoError(t, err)

	boom := errors.New("service down")
	emb := mock.NewMockEmbedder()
	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}
	config := &Config{BatchSize: 4, Workers: 2, ReportInterval: 1, Retry: fastPolicy(2)}
	r, err := NewReembedder(f.holder, f.store, nil, emb, "new-model", config, nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.ErrorIs(t, err, boom)

	after, err := f.holder.Current()
	require.NoError(t, err)
	assert.Same(t, before, after)

	stored, err := f.repos.Manifests.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old-model", stored.EmbeddingModel)
}

func TestReembedder_InvalidatedHolderUsesStore(t *testing.T) {
	f := setupFixture(t, 4)
	f.holder.Invalidate(core.ErrIndexUnavailable)

	r, err := NewReembedder(f.holder, f.store, nil, mock.NewMockEmbedder(), "m", nil, nil)
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, uint64(2), snap.Generation())

	_, err = f.holder.Current()
	assert.NoError(t, err)
}
