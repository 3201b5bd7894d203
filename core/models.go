package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for stored entities such as documents.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID identifies a chunk within one index generation.
// IDs are dense: a generation with N chunks uses 0..N-1.
type ChunkID uint32

// Document is a source file added to the corpus.
type Document struct {
	ID      ID
	Path    string
	Title   string
	Text    string
	AddedAt time.Time
}

// Chunk is a bounded unit of source text indexed independently.
type Chunk struct {
	ID          ChunkID
	Text        string
	SourceTitle string
	SourcePath  string
	Position    int // ordinal within the source document
}

// Hash returns the content hash used to key cached embeddings.
func (c *Chunk) Hash() ID {
	return IDFromContent(c.Text)
}

// TermStats holds per-chunk term frequencies for lexical scoring.
type TermStats struct {
	ChunkID     ChunkID
	Frequencies map[string]int
	Length      int
}

// ScoredCandidate carries every score a chunk accumulates during one query.
type ScoredCandidate struct {
	ChunkID     ChunkID
	DenseScore  float64 // raw cosine similarity, 0 if absent from dense results
	SparseScore float64 // raw BM25 score, 0 if absent from sparse results
	NormDense   float64
	NormSparse  float64
	FusedScore  float64
	RerankScore float64
	Reranked    bool // true when RerankScore came from the relevance scorer
}

// TermEvidence is the contribution of one query term to a chunk.
type TermEvidence struct {
	Term                     string
	TermFrequency            int
	InverseDocumentFrequency float64
}

// Weight returns tf·idf for the term.
func (t TermEvidence) Weight() float64 {
	return float64(t.TermFrequency) * t.InverseDocumentFrequency
}

// EvidenceSpan explains why a chunk was selected.
type EvidenceSpan struct {
	MatchedText   string
	MatchingTerms []TermEvidence
}

// Hit is one ranked entry of a RetrievalResult.
type Hit struct {
	Chunk     Chunk
	Candidate ScoredCandidate
	Evidence  EvidenceSpan
}

// RetrievalResult is the ranked, explained output of a query.
type RetrievalResult struct {
	QueryID         string
	Query           string
	Generation      uint64
	Hits            []Hit
	Degraded        bool
	DegradedReasons []string
}

// Empty reports whether the result has no hits.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Hits) == 0
}

// MarkDegraded flags the result and records why.
func (r *RetrievalResult) MarkDegraded(reason string) {
	r.Degraded = true
	r.DegradedReasons = append(r.DegradedReasons, reason)
}

// Manifest describes a persisted index generation.
type Manifest struct {
	Generation     uint64
	Dimension      int
	ChunkCount     int
	EmbeddingModel string
	Fingerprint    ID     // hash over all chunk hashes in id order
	VectorFile     string // base name of the vector file under the index directory
	BuiltAt        time.Time
}

// SourceRecord is a cited passage as saved with a QueryRecord.
type SourceRecord struct {
	Title    string
	Path     string
	Position int
	Score    float64
	Excerpt  string // evidence span that justified the citation
	Text     string
}

// QueryRecord is a saved question/answer exchange.
type QueryRecord struct {
	Id        ID
	QueryID   string
	Timestamp time.Time
	Question  string
	Answer    string
	Style     string
	Sources   []SourceRecord
	FollowUps []string
	Warnings  []string
	Degraded  bool
	Blocked   bool
}

// Matches reports whether keyword occurs in the question or answer,
// ignoring case.
func (r *QueryRecord) Matches(keyword string) bool {
	keyword = strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(r.Question), keyword) ||
		strings.Contains(strings.ToLower(r.Answer), keyword)
}
