// Package eval measures retrieval quality against labeled queries.
//
// Each labeled query names a gold snippet; the gold set is every chunk whose
// text contains it. Queries run once per mode (bm25, dense and hybrid, with
// reranking disabled) and the report gives Recall@1, Recall@3, Recall@5 and
// mean reciprocal rank per mode.
package eval
