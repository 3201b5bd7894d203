// Package sparse implements BM25 (Okapi) lexical scoring over chunk term statistics.
//
// Term tables are built from the chunk set with core.Tokenize and are never
// persisted; they are rebuilt whenever the chunk set is loaded.
package sparse
