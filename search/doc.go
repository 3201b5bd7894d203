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


// Package search runs the hybrid retrieval pipeline for one query.
//
// A query moves through fixed stages and never re-enters one:
//
//	RECEIVED -> DENSE_SEARCHED & SPARSE_SEARCHED -> FUSED -> RERANKED | BYPASSED -> JUSTIFIED -> RETURNED
//
// Dense and sparse sub-searches run in parallel against the snapshot that
// was current when the query arrived. Their results are fused, the head is
// reranked, and each final hit is annotated with evidence. A SearchMonitor
// observes every stage.
//
// Failures before RETURNED abort the query with a typed error. Two
// conditions degrade instead and are flagged on the result: an unavailable
// relevance scorer (fused order is kept) and, when WithSparseFallback is
// set, an embedding failure (sparse-only results).
package search
