package evidence

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/docrag/core"
)

// DefaultMaxChars bounds MatchedText in bytes.
const DefaultMaxChars = 300

// TermSource exposes corpus term tables. *sparse.Index satisfies it.
type TermSource interface {
	IDF(term string) (float64, bool)
	TermFrequency(id core.ChunkID, term string) int
}

// Justify builds the evidence span for chunk. Identical inputs always yield
// identical output.
func Justify(queryTokens []string, chunk core.Chunk, terms TermSource, maxLen int) core.EvidenceSpan {
	if maxLen < 1 {
		maxLen = DefaultMaxChars
	}
	query := make(map[string]bool, len(queryTokens))
	for _, tok := range queryTokens {
		query[tok] = true
	}
	return core.EvidenceSpan{
		MatchedText:   densestWindow(chunk.Text, query, maxLen),
		MatchingTerms: matchingTerms(query, chunk.ID, terms),
	}
}

// matchingTerms lists query terms present in the chunk by tf*idf
// descending, then term ascending.
func matchingTerms(query map[string]bool, id core.ChunkID, terms TermSource) []core.TermEvidence {
	out := make([]core.TermEvidence, 0, len(query))
	for term := range query {
		tf := terms.TermFrequency(id, term)
		if tf == 0 {
			continue
		}
		idf, _ := terms.IDF(term)
		out = append(out, core.TermEvidence{Term: term, TermFrequency: tf, InverseDocumentFrequency: idf})
	}
	slices.SortFunc(out, func(a, b core.TermEvidence) int {
		if c := cmp.Compare(b.Weight(), a.Weight()); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})
	return out
}

// word is a whitespace-delimited run of text and its query-term hits.
type word struct {
	start, end int
	hits       int
}

func splitWords(text string, query map[string]bool) []word {
	var words []word
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := word{start: start, end: end}
		for _, tok := range core.Tokenize(text[start:end]) {
			if query[tok] {
				w.hits++
			}
		}
		words = append(words, w)
		start = -1
	}
	for i, r := range text {
		if unicode.IsSpace(r) {
			flush(i)
		} else if start < 0 {
			start = i
		}
	}
	flush(len(text))
	return words
}

// densestWindow returns the run of whole words no longer than maxLen bytes
// holding the most query-term occurrences, earliest on ties. Without any
// occurrence this is the leading words of text.
func densestWindow(text string, query map[string]bool, maxLen int) string {
	words := splitWords(text, query)
	if len(words) == 0 {
		return ""
	}

	bestStart, bestEnd, bestHits := -1, -1, -1
	hits, j := 0, 0
	for i := range words {
		if j < i {
			j, hits = i, 0
		}
		for j < len(words) && words[j].end-words[i].start <= maxLen {
			hits += words[j].hits
			j++
		}
		if j > i && hits > bestHits {
			bestStart, bestEnd, bestHits = i, j, hits
		}
		if j > i {
			hits -= words[i].hits
		}
	}

	if bestStart < 0 {
		// Every word is longer than maxLen; cut the first on a rune boundary.
		return truncate(text[words[0].start:words[0].end], maxLen)
	}
	return text[words[bestStart].start:words[bestEnd-1].end]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
