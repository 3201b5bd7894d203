package core

import (
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/go-crypt/x/blake2b"
)

// Tokenize lowercases text and splits it on runs of characters that are
// neither letters nor digits. Ingestion and queries must share it.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// Fingerprint hashes the chunk hashes of a chunk set in id order.
// Two generations with the same texts in the same order share a fingerprint.
func Fingerprint(chunks []Chunk) ID {
	h, _ := blake2b.New(8, nil)
	var buf [8]byte
	for i := range chunks {
		binary.LittleEndian.PutUint64(buf[:], uint64(chunks[i].Hash()))
		h.Write(buf[:])
	}
	return ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}
