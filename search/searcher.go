package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/evidence"
	"github.com/poiesic/docrag/fusion"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/index/dense"
	"github.com/poiesic/docrag/index/sparse"
	"github.com/poiesic/docrag/rerank"
	"golang.org/x/sync/errgroup"
)

// DefaultSearchDepth is how many matches each sub-search contributes to fusion.
const DefaultSearchDepth = 20

// Searcher runs hybrid retrieval against the current index snapshot.
// It is safe for concurrent use.
type Searcher struct {
	holder         *index.Holder
	embedder       ai.Embedder
	scorer         ai.RelevanceScorer
	reranker       *rerank.Reranker
	topK           int
	alpha          float64
	rerankEnabled  bool
	candidatePool  int
	searchDepth    int
	rerankWorkers  int
	maxEvidence    int
	sparseFallback bool
	monitor        SearchMonitor
	logger         *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithTopK sets the number of hits returned. Default is 3.
func WithTopK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 {
			return rerank.ErrInvalidTopK
		}
		s.topK = k
		return nil
	}
}

// WithAlpha sets the dense weight used by fusion. Default is 0.65.
func WithAlpha(alpha float64) Option {
	return func(s *Searcher) error {
		if err := fusion.ValidateAlpha(alpha); err != nil {
			return err
		}
		s.alpha = alpha
		return nil
	}
}

// WithRerank enables or disables reranking. Default is enabled.
func WithRerank(enabled bool) Option {
	return func(s *Searcher) error {
		s.rerankEnabled = enabled
		return nil
	}
}

// WithCandidatePool sets how many fused candidates are reranked. Default is 10.
func WithCandidatePool(n int) Option {
	return func(s *Searcher) error {
		s.candidatePool = n
		return nil
	}
}

// WithSearchDepth sets how many matches each sub-search returns. Default is 20.
func WithSearchDepth(n int) Option {
	return func(s *Searcher) error {
		s.searchDepth = n
		return nil
	}
}

// WithRerankWorkers sets the size of the pair-scoring pool.
func WithRerankWorkers(n int) Option {
	return func(s *Searcher) error {
		s.rerankWorkers = n
		return nil
	}
}

// WithMaxEvidenceChars bounds each hit's matched text. Default is 300.
func WithMaxEvidenceChars(n int) Option {
	return func(s *Searcher) error {
		s.maxEvidence = n
		return nil
	}
}

// WithSparseFallback returns sparse-only results flagged as degraded when the
// query cannot be embedded. Default is off: embedding failure fails the query.
func WithSparseFallback(enabled bool) Option {
	return func(s *Searcher) error {
		s.sparseFallback = enabled
		return nil
	}
}

// WithMonitor installs a monitor observing every query.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(holder *index.Holder, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if holder == nil {
		return nil, ErrHolderRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		holder:        holder,
		embedder:      provider.Embedder(),
		scorer:        provider.RelevanceScorer(),
		topK:          rerank.DefaultTopK,
		alpha:         fusion.DefaultAlpha,
		rerankEnabled: true,
		candidatePool: rerank.DefaultCandidatePool,
		searchDepth:   DefaultSearchDepth,
		maxEvidence:   evidence.DefaultMaxChars,
		monitor:       &noopMonitor{},
		logger:        slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.searchDepth < s.candidatePool {
		return nil, fmt.Errorf("%w: depth %d, pool %d", ErrInvalidSearchDepth, s.searchDepth, s.candidatePool)
	}
	s.logger = s.logger.With("component", "searcher")

	rerankOpts := []rerank.Option{
		rerank.WithEnabled(s.rerankEnabled),
		rerank.WithTopK(s.topK),
		rerank.WithCandidatePool(s.candidatePool),
		rerank.WithLogger(s.logger),
	}
	if s.rerankWorkers > 0 {
		rerankOpts = append(rerankOpts, rerank.WithWorkers(s.rerankWorkers))
	}
	reranker, err := rerank.New(s.scorer, rerankOpts...)
	if err != nil {
		return nil, err
	}
	s.reranker = reranker
	return s, nil
}

// TopK returns the maximum number of hits per query.
func (s *Searcher) TopK() int {
	return s.topK
}

// Search retrieves up to top_k chunks for query. An empty index yields an
// empty result and no error.
func (s *Searcher) Search(ctx context.Context, query string) (*core.RetrievalResult, error) {
	result := &core.RetrievalResult{QueryID: uuid.NewString(), Query: query}
	s.monitor.Start(result.QueryID, query)

	hits, err := s.run(ctx, result)
	if err != nil {
		s.logger.Error("search failed", "queryID", result.QueryID, "err", err)
		return nil, err
	}
	result.Hits = hits
	s.monitor.Finish(result)
	s.logger.Debug("search returned", "queryID", result.QueryID, "hits", len(hits), "degraded", result.Degraded)
	return result, nil
}

func (s *Searcher) fail(stage Stage, err error) error {
	s.monitor.Fail(stage, err)
	return fmt.Errorf("search %s: %w", strings.ToLower(string(stage)), err)
}

func (s *Searcher) run(ctx context.Context, result *core.RetrievalResult) ([]core.Hit, error) {
	if strings.TrimSpace(result.Query) == "" {
		return nil, s.fail(StageReceived, ErrEmptyQuery)
	}
	snap, err := s.holder.Current()
	if err != nil {
		return nil, s.fail(StageReceived, err)
	}
	result.Generation = snap.Generation()
	if snap.Len() == 0 {
		s.logger.Debug("no chunks indexed", "err", core.ErrIndexEmpty)
		return []core.Hit{}, nil
	}
	tokens := core.Tokenize(result.Query)

	denseMatches, sparseMatches, err := s.subSearch(ctx, snap, result, tokens)
	if err != nil {
		return nil, err
	}

	candidates, err := fusion.Fuse(denseMatches, sparseMatches, s.alpha)
	if err != nil {
		return nil, s.fail(StageFused, err)
	}
	s.monitor.AfterFusion(candidates)

	texts := make(map[core.ChunkID]string, s.candidatePool)
	for _, c := range candidates[:min(len(candidates), s.candidatePool)] {
		chunk, _ := snap.Chunk(c.ChunkID)
		texts[c.ChunkID] = chunk.Text
	}
	outcome, err := s.reranker.Rerank(ctx, result.Query, candidates, texts)
	if err != nil {
		return nil, s.fail(StageReranked, err)
	}
	if outcome.Degraded {
		result.MarkDegraded(outcome.Reason.Error())
	}
	s.monitor.AfterRerank(outcome)

	hits := make([]core.Hit, 0, len(outcome.Candidates))
	for _, c := range outcome.Candidates {
		chunk, _ := snap.Chunk(c.ChunkID)
		hits = append(hits, core.Hit{
			Chunk:     chunk,
			Candidate: c,
			Evidence:  evidence.Justify(tokens, chunk, snap.Sparse(), s.maxEvidence),
		})
	}
	s.monitor.AfterJustify(hits)
	return hits, nil
}

// stageError carries a sub-search failure out of the errgroup so the
// monitor sees it once, from the calling goroutine.
type stageError struct {
	stage Stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// subSearch runs the dense and sparse searches in parallel.
func (s *Searcher) subSearch(ctx context.Context, snap *index.Snapshot, result *core.RetrievalResult, tokens []string) ([]dense.Match, []sparse.Match, error) {
	var (
		denseMatches  []dense.Match
		sparseMatches []sparse.Match
		embedErr      error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := s.embedder.EmbedText(gctx, result.Query)
		if err != nil {
			err = fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
			if s.sparseFallback && ctx.Err() == nil {
				embedErr = err
				return nil
			}
			return &stageError{StageDenseSearched, err}
		}
		matches, err := snap.Dense().Search(vec, s.searchDepth)
		if err != nil {
			return &stageError{StageDenseSearched, err}
		}
		denseMatches = matches
		s.monitor.AfterDenseSearch(matches)
		return nil
	})
	g.Go(func() error {
		matches, err := snap.Sparse().Search(tokens, s.searchDepth)
		if err != nil {
			return &stageError{StageSparseSearched, err}
		}
		sparseMatches = matches
		s.monitor.AfterSparseSearch(matches)
		return nil
	})
	if err := g.Wait(); err != nil {
		var se *stageError
		if errors.As(err, &se) {
			return nil, nil, s.fail(se.stage, se.err)
		}
		return nil, nil, s.fail(StageDenseSearched, err)
	}

	if embedErr != nil {
		s.logger.Warn("embedding failed, returning sparse-only results", "queryID", result.QueryID, "err", embedErr)
		result.MarkDegraded(embedErr.Error())
	}
	return denseMatches, sparseMatches, nil
}

// Release frees the rerank worker pool.
func (s *Searcher) Release() {
	if s.reranker != nil {
		s.reranker.Release()
	}
}

