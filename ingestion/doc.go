// Package ingestion turns source files into index generations.
//
// A Pipeline loads .txt and .md files into the document store, then rebuilds
// the whole index from every stored document:
//   - split each document into overlapping word windows
//   - assign dense chunk ids in document path order
//   - embed chunk text, reusing cached vectors for unchanged text
//   - commit vectors, chunks and manifest through index.Store
//   - publish the new snapshot on the shared index.Holder
//
// Embedding batches run concurrently on a worker pool. A failed rebuild
// leaves the previously published snapshot in place.
package ingestion
