// Package dense implements exact nearest-neighbor search by cosine similarity.
//
// Vectors are stored normalized, so similarity is an inner product. The index
// persists as a flat vector file addressable by chunk id.
package dense
