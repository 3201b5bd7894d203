package sparse

import (
	"cmp"
	"errors"
	"math"
	"slices"

	"github.com/poiesic/docrag/core"
)

const (
	// DefaultK1 controls term-frequency saturation.
	DefaultK1 = 1.5
	// DefaultB controls document-length normalization.
	DefaultB = 0.75
	// Epsilon scales the floor applied to negative IDFs.
	Epsilon = 0.25
)

var (
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("k must be at least 1")

	// ErrInvalidParams is returned for k1 < 0 or b outside [0, 1].
	ErrInvalidParams = errors.New("invalid bm25 parameters")
)

// Match is one sparse search hit.
type Match struct {
	ChunkID core.ChunkID
	Score   float64
}

// Params are the BM25 constants fixed for the lifetime of an index.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns k1=1.5, b=0.75.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.K1 < 0 || p.B < 0 || p.B > 1 || math.IsNaN(p.K1) || math.IsNaN(p.B) {
		return ErrInvalidParams
	}
	return nil
}

// Index is an immutable BM25 (Okapi) index.
type Index struct {
	params   Params
	stats    []core.TermStats
	idf      map[string]float64
	postings map[string][]core.ChunkID // ascending chunk ids containing the term
	avgLen   float64
}

// Build tokenizes every chunk with core.Tokenize and computes term tables.
// chunks must be in id order.
func Build(chunks []core.Chunk, params Params) (*Index, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	idx := &Index{
		params:   params,
		stats:    make([]core.TermStats, len(chunks)),
		idf:      make(map[string]float64),
		postings: make(map[string][]core.ChunkID),
	}

	var totalLen int
	for i := range chunks {
		tokens := core.Tokenize(chunks[i].Text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		idx.stats[i] = core.TermStats{ChunkID: core.ChunkID(i), Frequencies: freqs, Length: len(tokens)}
		totalLen += len(tokens)
		for term := range freqs {
			idx.postings[term] = append(idx.postings[term], core.ChunkID(i))
		}
	}
	if len(chunks) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(chunks))
	}
	idx.computeIDF()
	return idx, nil
}

// computeIDF uses ln((N-df+0.5)/(df+0.5)); negative values are replaced by
// Epsilon times the mean IDF, floored at zero so scores stay non-negative.
func (idx *Index) computeIDF() {
	n := float64(len(idx.stats))
	var sum float64
	var negative []string
	for term, ids := range idx.postings {
		df := float64(len(ids))
		v := math.Log(n-df+0.5) - math.Log(df+0.5)
		idx.idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	if len(idx.idf) == 0 {
		return
	}
	floor := Epsilon * sum / float64(len(idx.idf))
	if floor < 0 {
		floor = 0
	}
	for _, term := range negative {
		idx.idf[term] = floor
	}
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.stats)
}

// Params returns the constants the index was built with.
func (idx *Index) Params() Params {
	return idx.params
}

// IDF returns the inverse document frequency of term, false if unseen.
func (idx *Index) IDF(term string) (float64, bool) {
	v, ok := idx.idf[term]
	return v, ok
}

// TermFrequency returns how often term occurs in chunk id.
func (idx *Index) TermFrequency(id core.ChunkID, term string) int {
	if int(id) >= len(idx.stats) {
		return 0
	}
	return idx.stats[id].Frequencies[term]
}

// Stats returns the term statistics of chunk id.
func (idx *Index) Stats(id core.ChunkID) (core.TermStats, bool) {
	if int(id) >= len(idx.stats) {
		return core.TermStats{}, false
	}
	return idx.stats[id], true
}

// Score returns the BM25 score of chunk id for tokens. Repeated query
// tokens count once per occurrence; unknown tokens contribute zero.
func (idx *Index) Score(id core.ChunkID, tokens []string) float64 {
	if int(id) >= len(idx.stats) {
		return 0
	}
	st := idx.stats[id]
	lengthNorm := 1 - idx.params.B
	if idx.avgLen > 0 {
		lengthNorm += idx.params.B * float64(st.Length) / idx.avgLen
	}
	var score float64
	for _, tok := range tokens {
		tf := float64(st.Frequencies[tok])
		if tf == 0 {
			continue
		}
		score += idx.idf[tok] * (tf * (idx.params.K1 + 1)) / (tf + idx.params.K1*lengthNorm)
	}
	return score
}

// Search returns up to k chunks containing at least one query token, by
// descending score then ascending chunk id. Chunks scoring zero are not
// matches, so out-of-vocabulary queries and terms present in every chunk
// yield none.
func (idx *Index) Search(tokens []string, k int) ([]Match, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	seen := make(map[core.ChunkID]bool)
	var matches []Match
	for _, tok := range tokens {
		for _, id := range idx.postings[tok] {
			if seen[id] {
				continue
			}
			seen[id] = true
			score := idx.Score(id, tokens)
			if score <= 0 {
				continue
			}
			matches = append(matches, Match{ChunkID: id, Score: score})
		}
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}
