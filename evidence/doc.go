// Package evidence explains why a chunk was retrieved.
//
// Justify is a pure function of the query tokens, the chunk and the corpus
// term tables: it reports the tf and idf of each query term found in the
// chunk and picks the densest window of query terms as the matched text.
// It never influences ranking.
package evidence
