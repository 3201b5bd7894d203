package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func sampleChunks(n int) []core.Chunk {
	chunks := make([]core.Chunk, n)
	for i := range chunks {
		chunks[i] = core.Chunk{
			ID:          core.ChunkID(i),
			Text:        fmt.Sprintf("chunk text %d", i),
			SourceTitle: "doc",
			SourcePath:  "/corpus/doc.txt",
			Position:    i,
		}
	}
	return chunks
}

func TestDocumentRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepos(t).Documents

	docs, err := repo.PutDocuments(ctx,
		&core.Document{Path: "/b.txt", Title: "b.txt", Text: "bravo"},
		&core.Document{Path: "/a.txt", Title: "a.txt", Text: "alpha"},
	)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, core.IDFromContent("/b.txt"), docs[0].ID)
	assert.False(t, docs[0].AddedAt.IsZero())

	t.Run("get", func(t *testing.T) {
		doc, err := repo.GetDocument(ctx, core.IDFromContent("/a.txt"))
		require.NoError(t, err)
		assert.Equal(t, "alpha", doc.Text)
	})

	t.Run("all ordered by path", func(t *testing.T) {
		all, err := repo.AllDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "/a.txt", all[0].Path)
		assert.Equal(t, "/b.txt", all[1].Path)
	})

	t.Run("replace keeps one copy", func(t *testing.T) {
		_, err := repo.PutDocuments(ctx, &core.Document{Path: "/a.txt", Title: "a.txt", Text: "alpha v2"})
		require.NoError(t, err)
		all, err := repo.AllDocuments(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteDocument(ctx, core.IDFromContent("/b.txt")))
		_, err := repo.GetDocument(ctx, core.IDFromContent("/b.txt"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteDocument(ctx, core.IDFromContent("/b.txt")), storage.ErrNotFound)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := repo.PutDocuments(ctx, &core.Document{Path: "/c.txt"})
		assert.ErrorIs(t, err, core.ErrEmptyContent)
	})
}

func TestChunkRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepos(t).Chunks

	require.NoError(t, repo.ReplaceChunks(ctx, sampleChunks(3)))

	count, err := repo.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := repo.GetChunks(ctx, 2, 0, 42)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.ChunkID(2), got[0].ID)
	assert.Equal(t, core.ChunkID(0), got[1].ID)

	t.Run("replace shrinks the set", func(t *testing.T) {
		require.NoError(t, repo.ReplaceChunks(ctx, sampleChunks(2)))
		all, err := repo.AllChunks(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, core.ChunkID(0), all[0].ID)
		assert.Equal(t, core.ChunkID(1), all[1].ID)
	})

	t.Run("rejects sparse ids", func(t *testing.T) {
		bad := sampleChunks(2)
		bad[1].ID = 5
		assert.ErrorIs(t, repo.ReplaceChunks(ctx, bad), core.ErrInvalidChunk)
	})

	t.Run("ids order past 255", func(t *testing.T) {
		require.NoError(t, repo.ReplaceChunks(ctx, sampleChunks(300)))
		all, err := repo.AllChunks(ctx)
		require.NoError(t, err)
		require.Len(t, all, 300)
		for i, c := range all {
			assert.Equal(t, core.ChunkID(i), c.ID)
		}
	})
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	cache := newRepos(t).Embeddings

	h1, h2 := core.IDFromContent("one"), core.IDFromContent("two")
	require.NoError(t, cache.PutEmbeddings(ctx, "model-a", map[core.ID][]float32{h1: {1, 2}}))

	found, err := cache.GetEmbeddings(ctx, "model-a", h1, h2)
	require.NoError(t, err)
	assert.Equal(t, map[core.ID][]float32{h1: {1, 2}}, found)

	found, err = cache.GetEmbeddings(ctx, "model-b", h1)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestManifestRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepos(t).Manifests

	m, err := repo.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	want := &core.Manifest{Generation: 3, Dimension: 8, ChunkCount: 10, EmbeddingModel: "m", BuiltAt: time.Now().UTC()}
	require.NoError(t, repo.SaveManifest(ctx, want))

	got, err := repo.LoadManifest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Generation, got.Generation)
	assert.Equal(t, want.ChunkCount, got.ChunkCount)
	assert.True(t, want.BuiltAt.Equal(got.BuiltAt))

	assert.ErrorIs(t, repo.SaveManifest(ctx, nil), storage.ErrNilManifest)
}

func TestManifestRepository_CommitGeneration(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)

	first := &core.Manifest{Generation: 1, ChunkCount: 3, VectorFile: "vectors-1.bin"}
	require.NoError(t, repos.Manifests.CommitGeneration(ctx, sampleChunks(3), first))

	count, err := repos.Chunks.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	got, err := repos.Manifests.LoadManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vectors-1.bin", got.VectorFile)

	t.Run("invalid chunk set changes nothing", func(t *testing.T) {
		bad := sampleChunks(2)
		bad[1].ID = 5
		err := repos.Manifests.CommitGeneration(ctx, bad, &core.Manifest{Generation: 2})
		assert.ErrorIs(t, err, core.ErrInvalidChunk)

		count, err := repos.Chunks.CountChunks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		got, err := repos.Manifests.LoadManifest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got.Generation)
	})

	t.Run("nil manifest", func(t *testing.T) {
		assert.ErrorIs(t, repos.Manifests.CommitGeneration(ctx, sampleChunks(1), nil), storage.ErrNilManifest)
	})

	t.Run("replaces chunks and manifest", func(t *testing.T) {
		require.NoError(t, repos.Manifests.CommitGeneration(ctx, sampleChunks(1),
			&core.Manifest{Generation: 2, ChunkCount: 1, VectorFile: "vectors-2.bin"}))
		all, err := repos.Chunks.AllChunks(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		got, err := repos.Manifests.LoadManifest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), got.Generation)
	})
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepos(t).History

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*core.QueryRecord{
		{Question: "first", Timestamp: base},
		{Question: "second", Timestamp: base.Add(time.Minute)},
		{Question: "third", Timestamp: base.Add(2 * time.Minute), Sources: []core.SourceRecord{
			{Title: "bm25.md", Path: "/docs/bm25.md", Position: 2, Score: 0.75, Excerpt: "term frequency", Text: "BM25 uses term frequency."},
		}},
	}
	added, err := repo.AddQueryRecords(ctx, records...)
	require.NoError(t, err)
	require.Len(t, added, 3)
	assert.NotZero(t, added[0].Id)
	assert.NotEqual(t, added[0].Id, added[1].Id)

	t.Run("recent first", func(t *testing.T) {
		recent, err := repo.GetRecentQueryRecords(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "third", recent[0].Question)
		assert.Equal(t, "second", recent[1].Question)
	})

	t.Run("sources round trip", func(t *testing.T) {
		recent, err := repo.GetRecentQueryRecords(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, records[2].Sources, recent[0].Sources)
	})

	t.Run("date range is half open", func(t *testing.T) {
		got, err := repo.GetQueryRecordsByDateRange(ctx, base, base.Add(2*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Question)
		assert.Equal(t, "second", got[1].Question)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := repo.GetRecentQueryRecords(ctx, 0)
		assert.ErrorIs(t, err, storage.ErrInvalidRange)
		_, err = repo.GetQueryRecordsByDateRange(ctx, base, base.Add(-time.Hour))
		assert.ErrorIs(t, err, storage.ErrInvalidRange)
	})

	t.Run("timestamp defaults to now", func(t *testing.T) {
		added, err := repo.AddQueryRecords(ctx, &core.QueryRecord{Question: "now"})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), added[0].Timestamp, time.Minute)
	})
}
