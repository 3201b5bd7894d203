package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/reembed"
	"github.com/poiesic/docrag/storage"
)

// embeddingProcessor produces one unit vector per chunk, embedding only
// texts the cache has no vector for under the current model.
type embeddingProcessor struct {
	batch          *reembed.BatchProcessor
	cache          storage.EmbeddingCache
	model          string
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

func (ep *embeddingProcessor) process(ctx context.Context, chunks []core.Chunk) ([][]float32, error) {
	hashes := make([]core.ID, len(chunks))
	for i := range chunks {
		hashes[i] = chunks[i].Hash()
	}

	known := map[core.ID][]float32{}
	if ep.cache != nil && len(chunks) > 0 {
		cached, err := ep.cache.GetEmbeddings(ctx, ep.model, hashes...)
		if err != nil {
			ep.logger.Warn("embedding cache unavailable", "err", err)
		} else {
			known = cached
		}
	}

	var (
		missing []core.ID
		texts   []string
	)
	queued := make(map[core.ID]bool)
	for i, h := range hashes {
		if _, ok := known[h]; ok || queued[h] {
			continue
		}
		queued[h] = true
		missing = append(missing, h)
		texts = append(texts, chunks[i].Text)
	}
	ep.logger.Info("embedding chunks", "chunks", len(chunks), "cached", len(chunks)-len(texts), "new", len(texts))

	if len(texts) > 0 {
		tracker := reembed.NewProgressTracker(ep.progress, "chunks", len(texts), ep.reportInterval)
		tracker.Start()
		vectors, err := ep.batch.ProcessAll(ctx, texts, tracker)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
		}
		tracker.Finish()

		fresh := make(map[core.ID][]float32, len(missing))
		for i, h := range missing {
			fresh[h] = vectors[i]
			known[h] = vectors[i]
		}
		if ep.cache != nil {
			if err := ep.cache.PutEmbeddings(ctx, ep.model, fresh); err != nil {
				ep.logger.Warn("failed to cache embeddings", "err", err)
			}
		}
	}

	out := make([][]float32, len(chunks))
	for i, h := range hashes {
		out[i] = known[h]
	}
	return out, nil
}
