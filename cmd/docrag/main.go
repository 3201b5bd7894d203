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


package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/openai"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/eval"
	"github.com/poiesic/docrag/generation"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/search"
	"github.com/urfave/cli/v2"
)

const metaConfig = "config"

// newProvider constructs the AI provider for a configuration.
var newProvider = func(cfg *ai.Config) (ai.AIProvider, error) {
	return openai.NewProvider(cfg)
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "docrag",
		Usage:    "Hybrid dense and BM25 retrieval with grounded answers",
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (default: ./docrag.yaml if present)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to .env file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the database and index files",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set logging format (pretty, text, json)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add files or directories to the corpus and rebuild the index",
				ArgsUsage: "<path>...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report embedding progress every N chunks",
						Value: 100,
					},
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a document from the corpus and rebuild the index",
				ArgsUsage: "<path>",
				Action:    removeCommand,
			},
			{
				Name:   "rebuild",
				Usage:  "Rebuild the index from the stored documents",
				Action: rebuildCommand,
			},
			{
				Name:      "query",
				Usage:     "Retrieve ranked chunks with scores and evidence",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags:     retrievalFlags(),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from retrieved sources",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags:     retrievalFlags(),
			},
			{
				Name:      "basic",
				Usage:     "Answer a question without retrieval",
				ArgsUsage: "<question>",
				Action:    basicCommand,
			},
			{
				Name:   "chat",
				Usage:  "Ask questions interactively (/exit to quit)",
				Action: chatCommand,
				Flags:  retrievalFlags(),
			},
			historyCommands(),
			{
				Name:   "eval",
				Usage:  "Measure recall@k and MRR for bm25, dense and hybrid retrieval",
				Action: evalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSONL file of labeled queries",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the full JSON report to this file (- for stdout)",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Queries evaluated concurrently",
						Value: 4,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every chunk with a different embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (default: configured host)",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the published index generation",
				Action: statusCommand,
			},
		},
	}
}

func retrievalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Number of results (default: configured top_k)",
		},
		&cli.Float64Flag{
			Name:  "alpha",
			Usage: "Dense weight in [0,1] for fusion (default: configured alpha)",
		},
		&cli.BoolFlag{
			Name:  "no-rerank",
			Usage: "Skip the relevance reranking stage",
		},
	}
}

// setup loads configuration and installs the process logger.
// Flags take precedence over the config file and environment.
func setup(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}

	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	logger, err := newLogger(errWriter, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.App.Metadata[metaConfig] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func openEngine(c *cli.Context) (*docrag.Engine, error) {
	cfg := loadedConfig(c)
	provider, err := newProvider(cfg.AIConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	engine, err := docrag.Open(cfg.DataDir,
		docrag.WithConfig(cfg),
		docrag.WithProvider(provider),
		docrag.WithLogger(slog.Default()),
	)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open %s: %w", cfg.DataDir, err)
	}
	return engine, nil
}

func searchOptions(c *cli.Context) []search.Option {
	var opts []search.Option
	if c.IsSet("top-k") {
		opts = append(opts, search.WithTopK(c.Int("top-k")))
	}
	if c.IsSet("alpha") {
		opts = append(opts, search.WithAlpha(c.Float64("alpha")))
	}
	if c.Bool("no-rerank") {
		opts = append(opts, search.WithRerank(false))
	}
	return opts
}

func question(c *cli.Context) (string, error) {
	q := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if q == "" {
		return "", fmt.Errorf("a question is required")
	}
	return q, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline(
		ingestion.WithProgress(c.App.ErrWriter, c.Int("report-interval")),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	snap, err := pipeline.AddDocuments(c.Context, c.Args().Slice()...)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s %d chunks indexed (generation %d)\n",
		color.GreenString("✓"), snap.Len(), snap.Generation())
	return nil
}

func removeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one path is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	snap, err := pipeline.RemoveDocument(c.Context, c.Args().First())
	if err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s removed %s, %d chunks remain (generation %d)\n",
		color.GreenString("✓"), c.Args().First(), snap.Len(), snap.Generation())
	return nil
}

func rebuildCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline(ingestion.WithProgress(c.App.ErrWriter, 100))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	snap, err := pipeline.Rebuild(c.Context)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s %d chunks indexed (generation %d)\n",
		color.GreenString("✓"), snap.Len(), snap.Generation())
	return nil
}

func queryCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher(searchOptions(c)...)
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}
	defer searcher.Release()

	result, err := searcher.Search(c.Context, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *core.RetrievalResult) {
	fmt.Fprintf(w, "%s %s %s\n", color.HiBlackString("query"), result.Query,
		color.HiBlackString("(generation %d)", result.Generation))
	for _, reason := range result.DegradedReasons {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("degraded:"), reason)
	}
	if result.Empty() {
		fmt.Fprintln(w, color.YellowString("no results"))
		return
	}

	for i, hit := range result.Hits {
		cand := hit.Candidate
		fmt.Fprintf(w, "\n%s %s %s\n",
			color.New(color.Bold).Sprintf("[%d]", i+1),
			color.CyanString("%s", hit.Chunk.SourceTitle),
			color.HiBlackString("#%d chunk %d", hit.Chunk.Position, hit.Chunk.ID))

		scores := fmt.Sprintf("fused=%.4f dense=%.4f bm25=%.4f", cand.FusedScore, cand.DenseScore, cand.SparseScore)
		if cand.Reranked {
			scores += fmt.Sprintf(" rerank=%.4f", cand.RerankScore)
		}
		fmt.Fprintf(w, "    %s\n", color.HiBlackString("%s", scores))

		if len(hit.Evidence.MatchingTerms) > 0 {
			terms := make([]string, 0, len(hit.Evidence.MatchingTerms))
			for _, t := range hit.Evidence.MatchingTerms {
				terms = append(terms, fmt.Sprintf("%s(tf=%d idf=%.2f)", t.Term, t.TermFrequency, t.InverseDocumentFrequency))
			}
			fmt.Fprintf(w, "    %s %s\n", color.MagentaString("terms:"), strings.Join(terms, " "))
		}
		fmt.Fprintf(w, "    %s\n", hit.Evidence.MatchedText)
	}
}

func newAnswerer(c *cli.Context, engine *docrag.Engine) (*generation.Answerer, func(), error) {
	searcher, err := engine.NewSearcher(searchOptions(c)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create searcher: %w", err)
	}
	answerer, err := engine.NewAnswerer(searcher)
	if err != nil {
		searcher.Release()
		return nil, nil, fmt.Errorf("failed to create answerer: %w", err)
	}
	return answerer, searcher.Release, nil
}

func askCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	answerer, release, err := newAnswerer(c, engine)
	if err != nil {
		return err
	}
	defer release()

	answer, err := answerer.Ask(c.Context, q)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	printAnswer(c.App.Writer, answer)
	return nil
}

func basicCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	answerer, release, err := newAnswerer(c, engine)
	if err != nil {
		return err
	}
	defer release()

	answer, err := answerer.Basic(c.Context, q)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	printAnswer(c.App.Writer, answer)
	return nil
}

func printAnswer(w io.Writer, answer *generation.Answer) {
	if answer.Blocked {
		fmt.Fprintln(w, color.RedString("%s", answer.Text))
		return
	}
	fmt.Fprintln(w, answer.Text)

	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, color.New(color.Bold).Sprint("\nSources"))
		for i, src := range answer.Sources {
			fmt.Fprintf(w, "  [%d] %s %s\n", i+1, color.CyanString("%s", src.Title),
				color.HiBlackString("#%d score=%.4f", src.Position, src.Score))
		}
	}
	if len(answer.FollowUps) > 0 {
		fmt.Fprintln(w, color.New(color.Bold).Sprint("\nFollow-up questions"))
		for _, f := range answer.FollowUps {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	for _, warning := range answer.Warnings {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("warning:"), warning)
	}
}

func chatCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	answerer, release, err := newAnswerer(c, engine)
	if err != nil {
		return err
	}
	defer release()

	reader := c.App.Reader
	if reader == nil {
		reader = os.Stdin
	}
	scanner := bufio.NewScanner(reader)
	prompt := color.GreenString("> ")
	fmt.Fprint(c.App.Writer, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/exit", "/quit":
			return nil
		default:
			answer, err := answerer.Ask(c.Context, line)
			if err != nil {
				fmt.Fprintf(c.App.Writer, "%s %v\n", color.RedString("error:"), err)
			} else {
				printAnswer(c.App.Writer, answer)
			}
			fmt.Fprintln(c.App.Writer)
		}
		fmt.Fprint(c.App.Writer, prompt)
	}
	return scanner.Err()
}

func evalCommand(c *cli.Context) error {
	queries, err := eval.LoadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	evaluator, err := engine.NewEvaluator(eval.WithConcurrency(c.Int("concurrency")))
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}
	report, err := evaluator.Run(c.Context, queries)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%d queries, %d without gold (generation %d)\n\n",
		report.Queries, report.WithoutGold, report.Generation)
	header := fmt.Sprintf("%-8s", "mode")
	for _, k := range eval.Ks {
		header += fmt.Sprintf(" %9s", eval.RecallKey(k))
	}
	fmt.Fprintln(w, color.New(color.Bold).Sprint(header+"       mrr"))
	for _, m := range report.Modes {
		row := fmt.Sprintf("%-8s", m.Mode.Name)
		for _, k := range eval.Ks {
			row += fmt.Sprintf(" %9.3f", m.Recall[eval.RecallKey(k)])
		}
		fmt.Fprintf(w, "%s %9.3f\n", row, m.MRR)
	}

	switch out := c.String("out"); out {
	case "":
	case "-":
		return eval.WriteReport(w, report)
	default:
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer f.Close()
		if err := eval.WriteReport(f, report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	if c.IsSet("batch-size") {
		if c.Int("batch-size") <= 0 {
			return fmt.Errorf("batch-size must be greater than 0")
		}
		cfg.Embedding.BatchSize = c.Int("batch-size")
	}

	target := *cfg.AIConfig()
	target.EmbeddingModel = c.String("embedding-model")
	if host := c.String("embedding-host"); host != "" {
		target.EmbeddingHost = host
	}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}
	provider, err := newProvider(&target)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer provider.Close()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reembedder, err := engine.NewReembedder(provider, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("failed to create reembedder: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Data dir: %s\n", engine.DataDir())
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", target.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", target.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	snap, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s generation %d embedded with %s\n",
		color.GreenString("✓"), snap.Generation(), snap.Manifest().EmbeddingModel)
	if target.EmbeddingModel != cfg.AI.EmbeddingModel {
		fmt.Fprintf(c.App.Writer, "Set ai.embedding_model to %q before querying\n", target.EmbeddingModel)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	w := c.App.Writer
	fmt.Fprintf(w, "data dir:         %s\n", engine.DataDir())
	fmt.Fprintf(w, "embedding model:  %s\n", engine.Provider().EmbeddingModel())

	docs, err := engine.DocumentRepository().AllDocuments(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	fmt.Fprintf(w, "documents:        %d\n", len(docs))

	snap, err := engine.Snapshot()
	if err != nil {
		fmt.Fprintf(w, "index:            %s\n", color.RedString("unavailable (%v), run rebuild", err))
		return nil
	}
	m := snap.Manifest()
	fmt.Fprintf(w, "generation:       %d\n", m.Generation)
	fmt.Fprintf(w, "chunks:           %d\n", snap.Len())
	fmt.Fprintf(w, "dimension:        %d\n", m.Dimension)
	fmt.Fprintf(w, "index model:      %s\n", m.EmbeddingModel)
	if !m.BuiltAt.IsZero() {
		fmt.Fprintf(w, "built at:         %s\n", m.BuiltAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
