package reembed

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/index/dense"
)

// DefaultBatchSize is the number of texts sent to the embedder per call.
const DefaultBatchSize = 64

// BatchProcessor embeds texts in batches, retrying failed calls.
type BatchProcessor struct {
	embedder  ai.Embedder
	policy    RetryPolicy
	batchSize int
	pool      *ants.Pool
}

// NewBatchProcessor creates a batch processor. Batches run concurrently on
// pool when it is non-nil, sequentially otherwise.
func NewBatchProcessor(embedder ai.Embedder, policy RetryPolicy, batchSize int, pool *ants.Pool) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchProcessor{
		embedder:  embedder,
		policy:    policy,
		batchSize: batchSize,
		pool:      pool,
	}
}

// Process embeds one batch and returns unit-length vectors in input order.
func (bp *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, bp.policy, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings after %d attempts: %w", bp.policy.MaxAttempts, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(embeddings))
	}

	for i, v := range embeddings {
		unit, err := dense.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		embeddings[i] = unit
	}
	return embeddings, nil
}

// ProcessAll embeds texts batch by batch. tracker may be nil.
// The first failing batch cancels the rest.
func (bp *BatchProcessor) ProcessAll(ctx context.Context, texts []string, tracker *ProgressTracker) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(texts); start += bp.batchSize {
		end := min(start+bp.batchSize, len(texts))
		run := func() {
			batch, err := bp.Process(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			copy(vectors[start:end], batch)
			if tracker != nil {
				tracker.Increment(end - start)
			}
		}

		if bp.pool == nil {
			run()
			if firstErr != nil {
				break
			}
			continue
		}
		wg.Add(1)
		if err := bp.pool.Submit(func() {
			defer wg.Done()
			run()
		}); err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}
