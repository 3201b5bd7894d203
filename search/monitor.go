package search

import (
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/index/dense"
	"github.com/poiesic/docrag/index/sparse"
	"github.com/poiesic/docrag/rerank"
)

// Stage names a step of the query lifecycle.
type Stage string

const (
	StageReceived       Stage = "RECEIVED"
	StageDenseSearched  Stage = "DENSE_SEARCHED"
	StageSparseSearched Stage = "SPARSE_SEARCHED"
	StageFused          Stage = "FUSED"
	StageReranked       Stage = "RERANKED"
	StageBypassed       Stage = "BYPASSED"
	StageJustified      Stage = "JUSTIFIED"
	StageReturned       Stage = "RETURNED"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
// AfterDenseSearch and AfterSparseSearch may run concurrently. Fail is
// called at most once per query, never concurrently with other hooks.
type SearchMonitor interface {
	Start(queryID, query string)
	AfterDenseSearch(matches []dense.Match)
	AfterSparseSearch(matches []sparse.Match)
	AfterFusion(candidates []core.ScoredCandidate)
	AfterRerank(outcome rerank.Outcome)
	AfterJustify(hits []core.Hit)
	Finish(result *core.RetrievalResult)
	Fail(stage Stage, err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                       {}
func (n *noopMonitor) AfterDenseSearch(_ []dense.Match)        {}
func (n *noopMonitor) AfterSparseSearch(_ []sparse.Match)      {}
func (n *noopMonitor) AfterFusion(_ []core.ScoredCandidate)    {}
func (n *noopMonitor) AfterRerank(_ rerank.Outcome)            {}
func (n *noopMonitor) AfterJustify(_ []core.Hit)               {}
func (n *noopMonitor) Finish(_ *core.RetrievalResult)          {}
func (n *noopMonitor) Fail(_ Stage, _ error)                   {}
