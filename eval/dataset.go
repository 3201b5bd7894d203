package eval

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/poiesic/docrag/core"
)

// ErrNoQueries is returned for a dataset without labeled queries.
var ErrNoQueries = errors.New("no evaluation queries")

// Query is one labeled evaluation query.
type Query struct {
	Query       string `json:"query"`
	GoldSnippet string `json:"gold_snippet"`
	Answer      string `json:"answer"`
}

// LoadQueries reads one JSON object per line. Blank lines are skipped.
func LoadQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var q Query
		if err := json.Unmarshal([]byte(text), &q); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(q.Query) == "" {
			return nil, fmt.Errorf("line %d: query is empty", line)
		}
		queries = append(queries, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	return queries, nil
}

// LoadFile reads a JSONL dataset from path.
func LoadFile(path string) ([]Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadQueries(f)
}

// GoldSet returns the ids of chunks containing the query's gold snippet,
// compared case-insensitively. Without a snippet match it falls back to
// chunks containing the first content word of the answer. The result is
// sorted and may be empty.
func GoldSet(chunks []core.Chunk, q Query) []core.ChunkID {
	if ids := containing(chunks, strings.ToLower(strings.TrimSpace(q.GoldSnippet))); len(ids) > 0 {
		return ids
	}
	return containing(chunks, firstContentWord(q.Answer))
}

func containing(chunks []core.Chunk, needle string) []core.ChunkID {
	if needle == "" {
		return nil
	}
	var ids []core.ChunkID
	for i := range chunks {
		if strings.Contains(strings.ToLower(chunks[i].Text), needle) {
			ids = append(ids, chunks[i].ID)
		}
	}
	slices.Sort(ids)
	return ids
}
