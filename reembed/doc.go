// Package reembed rebuilds the vector index of the stored chunk set with a
// new or updated embedding model.
//
// The chunk set and chunk ids are kept; only vectors, the manifest's model
// and the generation change. The package also hosts the embedding machinery
// ingestion shares: batched embedding on a worker pool with exponential
// backoff retries, and progress reporting.
package reembed
