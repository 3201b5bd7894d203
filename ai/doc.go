// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai defines the model capabilities the retrieval engine consumes.
//
// Three capabilities are modeled, one method family each:
//
//   - Embedder: text to fixed-length vectors, shared by ingestion and queries
//   - RelevanceScorer: pairwise (query, passage) relevance for reranking
//   - Generator: answer and follow-up question generation
//
// AIProvider bundles them with a shared configuration and lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible services through langchaingo
//   - ai/mock: deterministic test doubles
//
// Public openai constructors return interface types. Mock constructors return
// concrete types so tests can inject behavior and read call counts:
//
//	emb := mock.NewMockEmbedder()
//	emb.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) { ... }
//	n := emb.CallCount()
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "what is bm25?")
package ai
