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


package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/fusion"
	"github.com/poiesic/docrag/index"
	"github.com/poiesic/docrag/search"
	"golang.org/x/sync/errgroup"
)

// Mode is a retrieval configuration under evaluation.
type Mode struct {
	Name  string  `json:"name"`
	Alpha float64 `json:"alpha"`
}

// Modes returns the lexical-only, dense-only and hybrid modes.
func Modes(hybridAlpha float64) []Mode {
	return []Mode{
		{Name: "bm25", Alpha: 0},
		{Name: "dense", Alpha: 1},
		{Name: "hybrid", Alpha: hybridAlpha},
	}
}

// ModeResult aggregates one mode over every query.
type ModeResult struct {
	Mode   Mode               `json:"mode"`
	Recall map[string]float64 `json:"recall"`
	MRR    float64            `json:"mrr"`
}

// QueryResult records what each mode retrieved for one query.
type QueryResult struct {
	Query     string                    `json:"query"`
	Gold      []core.ChunkID            `json:"gold"`
	Retrieved map[string][]core.ChunkID `json:"retrieved"`
}

// Report is the outcome of an evaluation run.
type Report struct {
	Generation  uint64        `json:"generation"`
	Queries     int           `json:"queries"`
	WithoutGold int           `json:"without_gold"`
	Modes       []ModeResult  `json:"modes"`
	PerQuery    []QueryResult `json:"per_query"`
}

// Evaluator runs labeled queries against the published index.
type Evaluator struct {
	holder      *index.Holder
	provider    ai.AIProvider
	alpha       float64
	concurrency int
	logger      *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator) error

// WithHybridAlpha sets the alpha of the hybrid mode. Default is 0.65.
func WithHybridAlpha(alpha float64) Option {
	return func(e *Evaluator) error {
		if err := fusion.ValidateAlpha(alpha); err != nil {
			return err
		}
		e.alpha = alpha
		return nil
	}
}

// WithConcurrency bounds the queries in flight. Default is runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(e *Evaluator) error {
		e.concurrency = max(1, n)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEvaluator creates an evaluator.
func NewEvaluator(holder *index.Holder, provider ai.AIProvider, opts ...Option) (*Evaluator, error) {
	if holder == nil {
		return nil, search.ErrHolderRequired
	}
	if provider == nil {
		return nil, search.ErrAIProviderRequired
	}
	e := &Evaluator{
		holder:      holder,
		provider:    provider,
		alpha:       fusion.DefaultAlpha,
		concurrency: runtime.NumCPU(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "eval")
	return e, nil
}

// Run evaluates queries in every mode. The first retrieval error aborts the
// run. Queries without gold chunks count as misses.
func (e *Evaluator) Run(ctx context.Context, queries []Query) (*Report, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	snap, err := e.holder.Current()
	if err != nil {
		return nil, err
	}

	modes := Modes(e.alpha)
	depth := slices.Max(Ks)
	searchers := make([]*search.Searcher, len(modes))
	defer func() {
		for _, s := range searchers {
			if s != nil {
				s.Release()
			}
		}
	}()
	for i, m := range modes {
		s, err := search.NewSearcher(e.holder, e.provider,
			search.WithAlpha(m.Alpha),
			search.WithRerank(false),
			search.WithTopK(depth),
			search.WithLogger(e.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", m.Name, err)
		}
		searchers[i] = s
	}

	report := &Report{Generation: snap.Generation(), Queries: len(queries), PerQuery: make([]QueryResult, len(queries))}
	for i, q := range queries {
		gold := GoldSet(snap.Chunks(), q)
		if len(gold) == 0 {
			report.WithoutGold++
			e.logger.Warn("no gold chunks for query", "query", q.Query)
		}
		report.PerQuery[i] = QueryResult{Query: q.Query, Gold: gold, Retrieved: make(map[string][]core.ChunkID, len(modes))}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, q := range queries {
		for j, m := range modes {
			g.Go(func() error {
				result, err := searchers[j].Search(gctx, q.Query)
				if err != nil {
					return fmt.Errorf("mode %s, query %q: %w", m.Name, q.Query, err)
				}
				ids := make([]core.ChunkID, len(result.Hits))
				for k, h := range result.Hits {
					ids[k] = h.Chunk.ID
				}
				mu.Lock()
				report.PerQuery[i].Retrieved[m.Name] = ids
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range modes {
		report.Modes = append(report.Modes, aggregate(m, report.PerQuery))
	}
	e.logger.Info("evaluation complete", "queries", len(queries), "without_gold", report.WithoutGold)
	return report, nil
}

func aggregate(m Mode, perQuery []QueryResult) ModeResult {
	recalls := make(map[int][]float64, len(Ks))
	var rr []float64
	for _, qr := range perQuery {
		gold := make(map[core.ChunkID]bool, len(qr.Gold))
		for _, id := range qr.Gold {
			gold[id] = true
		}
		retrieved := qr.Retrieved[m.Name]
		for _, k := range Ks {
			recalls[k] = append(recalls[k], RecallAt(retrieved, gold, k))
		}
		rr = append(rr, ReciprocalRank(retrieved, gold))
	}

	res := ModeResult{Mode: m, Recall: make(map[string]float64, len(Ks)), MRR: mean(rr)}
	for _, k := range Ks {
		res.Recall[RecallKey(k)] = mean(recalls[k])
	}
	return res
}

// RecallKey names the recall entry for cutoff k in a ModeResult.
func RecallKey(k int) string {
	return fmt.Sprintf("recall@%d", k)
}

// WriteReport writes report as indented JSON.
func WriteReport(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
