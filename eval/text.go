package eval

import "strings"

// Stop words skipped when falling back to an answer word as gold evidence
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// contentWords splits text into words, lowercases, trims punctuation, and removes stop words
func contentWords(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// firstContentWord returns the first non-stop word of text, or "".
func firstContentWord(text string) string {
	if words := contentWords(text); len(words) > 0 {
		return words[0]
	}
	return ""
}
