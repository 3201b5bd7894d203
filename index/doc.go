// Package index publishes immutable retrieval snapshots.
//
// A Snapshot bundles the chunk table of one index generation with its dense
// and sparse indexes. Snapshots are never mutated after construction, so any
// number of queries may read one concurrently.
//
// Holder owns the published snapshot. Readers call Current without locking;
// rebuilds are serialized and swap the pointer only when they succeed:
//
//	holder := index.NewHolder()
//	snap, err := holder.Rebuild(ctx, func(ctx context.Context, prev *index.Snapshot) (*index.Snapshot, error) {
//	    return index.NewSnapshot(manifest, chunks, denseIdx, sparse.DefaultParams())
//	})
//
// Store.Load reconstructs the last persisted generation from the chunk store,
// the stored manifest and the vector file.
package index
