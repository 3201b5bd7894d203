package ingestion

import (
	"fmt"
	"strings"

	"github.com/poiesic/docrag/core"
)

const (
	// DefaultChunkSize is the number of words per chunk.
	DefaultChunkSize = 200

	// DefaultChunkOverlap is the number of words shared by consecutive chunks.
	DefaultChunkOverlap = 40
)

// Chunker splits documents into windows of whitespace-delimited words.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker returns a Chunker with the default window.
func DefaultChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// Validate checks the window parameters.
func (c Chunker) Validate() error {
	if c.Size < 1 || c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, c.Size, c.Overlap)
	}
	return nil
}

// Split returns the chunks of doc with positions 0..n-1. Chunk ids are left
// zero; the caller numbers the whole chunk set.
func (c Chunker) Split(doc *core.Document) []core.Chunk {
	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		return nil
	}

	step := c.Size - c.Overlap
	var chunks []core.Chunk
	for start := 0; ; start += step {
		end := min(start+c.Size, len(words))
		chunks = append(chunks, core.Chunk{
			Text:        strings.Join(words[start:end], " "),
			SourceTitle: doc.Title,
			SourcePath:  doc.Path,
			Position:    len(chunks),
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// SplitAll chunks docs in order and assigns dense ids 0..N-1.
func (c Chunker) SplitAll(docs []*core.Document) []core.Chunk {
	var chunks []core.Chunk
	for _, doc := range docs {
		for _, chunk := range c.Split(doc) {
			chunk.ID = core.ChunkID(len(chunks))
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
