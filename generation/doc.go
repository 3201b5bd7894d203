// Package generation answers questions from retrieved chunks.
//
// Answerer.Ask retrieves evidence through a Retriever, prompts the
// generator with numbered context blocks, redacts and validates the reply,
// suggests follow-up questions and appends the exchange to the query
// history. Answerer.Basic asks the generator directly, without retrieval.
package generation
