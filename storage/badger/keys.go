package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/docrag/core"
)

// Key prefixes for different data types. No prefix is a prefix of another.
const (
	documentPrefix    = "doc:"
	chunkPrefix       = "chunk:"
	embeddingPrefix   = "emb:"
	manifestKey       = "manifest"
	queryRecordPrefix = "qrec:"
	queryDatePrefix   = "qrecd:"
	queryRecordIDSeq  = "qrecseq"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return appendUint64([]byte(documentPrefix), uint64(id))
}

// makeChunkKey generates a key for a chunk. Big-endian ids keep
// iteration in chunk id order.
func makeChunkKey(id core.ChunkID) []byte {
	buf := make([]byte, len(chunkPrefix)+4)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(id))
	return buf
}

// makeEmbeddingPrefix scopes cached embeddings to one model.
// Format: prefix:model:
func makeEmbeddingPrefix(model string) []byte {
	return []byte(embeddingPrefix + model + ":")
}

// makeEmbeddingKey generates a key for a cached embedding.
// Format: prefix:model:hash
func makeEmbeddingKey(model string, hash core.ID) []byte {
	return appendUint64(makeEmbeddingPrefix(model), uint64(hash))
}

// makeQueryRecordKey generates a key for a saved query by ID.
func makeQueryRecordKey(id core.ID) []byte {
	return appendUint64([]byte(queryRecordPrefix), uint64(id))
}

// makeQueryDateKey generates a composite key for the date index.
// Format: prefix:timestamp:id
func makeQueryDateKey(timestamp time.Time, id core.ID) []byte {
	return appendUint64(makePartialQueryDateKey(timestamp), uint64(id))
}

// makePartialQueryDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialQueryDateKey(timestamp time.Time) []byte {
	return appendUint64([]byte(queryDatePrefix), uint64(timestamp.UnixMicro()))
}

// appendUint64 writes v in BigEndian order so lexicographic sort matches numeric order.
func appendUint64(prefix []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(prefix, v)
}
