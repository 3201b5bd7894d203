package rerank

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
)

const (
	DefaultTopK          = 3
	DefaultCandidatePool = 10
)

// Outcome is the final ordering produced by Rerank.
type Outcome struct {
	Candidates []core.ScoredCandidate
	Bypassed   bool  // reranking disabled by configuration
	Degraded   bool  // scorer missing or failed; Candidates are in fused order
	Reason     error // wraps core.ErrRerankUnavailable when Degraded
}

// Reranker reorders fused candidates by pairwise relevance.
type Reranker struct {
	scorer        ai.RelevanceScorer
	enabled       bool
	topK          int
	candidatePool int
	pool          *ants.Pool
	logger        *slog.Logger
}

// Option configures a Reranker.
type Option func(*Reranker) error

// WithEnabled turns reranking on or off. Default is on.
func WithEnabled(enabled bool) Option {
	return func(r *Reranker) error {
		r.enabled = enabled
		return nil
	}
}

// WithTopK sets the number of candidates returned. Default is 3.
func WithTopK(k int) Option {
	return func(r *Reranker) error {
		if k < 1 {
			return ErrInvalidTopK
		}
		r.topK = k
		return nil
	}
}

// WithCandidatePool sets how many fused candidates are rescored. Default is 10.
func WithCandidatePool(n int) Option {
	return func(r *Reranker) error {
		r.candidatePool = n
		return nil
	}
}

// WithWorkers sets the scoring pool size.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithWorkers(size int) Option {
	return func(r *Reranker) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// New creates a Reranker. scorer may be nil, in which case every enabled
// rerank degrades.
func New(scorer ai.RelevanceScorer, opts ...Option) (*Reranker, error) {
	r := &Reranker{
		scorer:        scorer,
		enabled:       true,
		topK:          DefaultTopK,
		candidatePool: DefaultCandidatePool,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	if r.candidatePool < r.topK {
		r.Release()
		return nil, fmt.Errorf("%w: pool %d, top_k %d", ErrInvalidCandidatePool, r.candidatePool, r.topK)
	}
	if r.pool == nil {
		pool, err := ants.NewPool(max(1, runtime.NumCPU()))
		if err != nil {
			return nil, err
		}
		r.pool = pool
	}
	r.logger = r.logger.With("component", "reranker")
	return r, nil
}

// TopK returns the number of candidates Rerank keeps.
func (r *Reranker) TopK() int {
	return r.topK
}

// Enabled reports whether reranking is configured on.
func (r *Reranker) Enabled() bool {
	return r.enabled
}

// Rerank reorders the head of candidates, which must be in fused order.
// texts maps each candidate's chunk id to its text. Only a cancelled
// context is returned as an error.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []core.ScoredCandidate, texts map[core.ChunkID]string) (Outcome, error) {
	if !r.enabled {
		return Outcome{Candidates: r.fusedOrder(candidates), Bypassed: true}, nil
	}
	if r.scorer == nil {
		return r.degrade(candidates, fmt.Errorf("%w: no relevance scorer configured", core.ErrRerankUnavailable)), nil
	}

	head := candidates[:min(len(candidates), r.candidatePool)]
	scores, err := r.scoreAll(ctx, query, head, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		r.logger.Warn("relevance scoring failed, keeping fused order", "err", err)
		return r.degrade(candidates, fmt.Errorf("%w: %w", core.ErrRerankUnavailable, err)), nil
	}

	reranked := slices.Clone(head)
	for i := range reranked {
		reranked[i].RerankScore = scores[i]
		reranked[i].Reranked = true
	}
	// Stable sort keeps fused position as the tie-break.
	slices.SortStableFunc(reranked, func(a, b core.ScoredCandidate) int {
		return cmp.Compare(b.RerankScore, a.RerankScore)
	})
	return Outcome{Candidates: reranked[:min(len(reranked), r.topK)]}, nil
}

// scoreAll scores every (query, text) pair on the worker pool.
func (r *Reranker) scoreAll(ctx context.Context, query string, head []core.ScoredCandidate, texts map[core.ChunkID]string) ([]float64, error) {
	scores := make([]float64, len(head))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	passages := make([]string, len(head))
	for i, c := range head {
		text, ok := texts[c.ChunkID]
		if !ok {
			return nil, fmt.Errorf("no text for chunk %d", c.ChunkID)
		}
		passages[i] = text
	}

	for i, c := range head {
		text := passages[i]
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			score, err := r.scorer.Score(ctx, query, text)
			if err != nil {
				setErr(fmt.Errorf("chunk %d: %w", c.ChunkID, err))
				return
			}
			scores[i] = score
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}

// fusedOrder truncates to top_k with RerankScore equal to FusedScore.
func (r *Reranker) fusedOrder(candidates []core.ScoredCandidate) []core.ScoredCandidate {
	out := slices.Clone(candidates[:min(len(candidates), r.topK)])
	for i := range out {
		out[i].RerankScore = out[i].FusedScore
		out[i].Reranked = false
	}
	return out
}

func (r *Reranker) degrade(candidates []core.ScoredCandidate, reason error) Outcome {
	return Outcome{Candidates: r.fusedOrder(candidates), Degraded: true, Reason: reason}
}

// Release frees the scoring pool.
func (r *Reranker) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
