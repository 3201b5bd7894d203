// Package rerank refines the head of a fused ranking with a pairwise
// relevance scorer.
//
// The top candidate_pool fused candidates are scored against the query on a
// worker pool, reordered by relevance and truncated to top_k. A disabled
// reranker is a pure bypass. A missing or failing scorer degrades to fused
// order and reports core.ErrRerankUnavailable in the Outcome instead of
// failing the query.
package rerank
