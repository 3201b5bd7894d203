package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
	"github.com/urfave/cli/v2"
)

const (
	dayLayout     = "2006-01-02"
	stampLayout   = "2006-01-02 15:04:05"
	maxViewedText = 500
)

var (
	historyStart = time.Unix(0, 0).UTC()
	historyEnd   = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

func historyRangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "since",
			Usage: "Only records on or after this day (YYYY-MM-DD) or instant (RFC 3339)",
		},
		&cli.StringFlag{
			Name:  "until",
			Usage: "Only records before the end of this day (YYYY-MM-DD) or before this instant (RFC 3339)",
		},
	}
}

func historyListFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Number of records to show",
			Value:   10,
		},
	}, historyRangeFlags()...)
}

func historyCommands() *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "Show, search and export saved questions and answers",
		Action: historyListCommand,
		Flags:  historyListFlags(),
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show recent records, most recent first",
				Action: historyListCommand,
				Flags:  historyListFlags(),
			},
			{
				Name:      "view",
				Usage:     "Show one record in full",
				ArgsUsage: "<n>",
				Action:    historyViewCommand,
			},
			{
				Name:      "search",
				Usage:     "Find records whose question or answer contains a keyword",
				ArgsUsage: "<keyword>",
				Action:    historySearchCommand,
			},
			{
				Name:   "export",
				Usage:  "Write records to Markdown, oldest first",
				Action: historyExportCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (stdout when empty)",
					},
				}, historyRangeFlags()...),
			},
		},
	}
}

// parseInstant accepts a calendar day in UTC or an RFC 3339 timestamp.
// A bare day used as an upper bound covers the whole day.
func parseInstant(value string, upper bool) (time.Time, error) {
	if day, err := time.Parse(dayLayout, value); err == nil {
		if upper {
			day = day.AddDate(0, 0, 1)
		}
		return day, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", value)
	}
	return t.UTC(), nil
}

// historyRange reads --since/--until as the half-open interval [start, end).
// ok is false when neither flag is set.
func historyRange(c *cli.Context) (start, end time.Time, ok bool, err error) {
	start, end = historyStart, historyEnd
	if v := c.String("since"); v != "" {
		if start, err = parseInstant(v, false); err != nil {
			return start, end, false, err
		}
		ok = true
	}
	if v := c.String("until"); v != "" {
		if end, err = parseInstant(v, true); err != nil {
			return start, end, false, err
		}
		ok = true
	}
	if end.Before(start) {
		return start, end, false, fmt.Errorf("--until is before --since")
	}
	return start, end, ok, nil
}

// rangedHistory returns the records in [start, end) most recent first, and
// the number of records newer than end so callers can number them the way
// the unfiltered list does.
func rangedHistory(ctx context.Context, repo storage.HistoryRepository, start, end time.Time) ([]*core.QueryRecord, int, error) {
	records, err := repo.GetQueryRecordsByDateRange(ctx, start, end)
	if err != nil {
		return nil, 0, err
	}
	newer, err := repo.GetQueryRecordsByDateRange(ctx, end, historyEnd)
	if err != nil {
		return nil, 0, err
	}
	reverse(records)
	return records, len(newer), nil
}

func reverse(records []*core.QueryRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

func historyListCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}
	start, end, ranged, err := historyRange(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()
	repo := engine.HistoryRepository()

	var (
		records []*core.QueryRecord
		offset  int
	)
	if ranged {
		records, offset, err = rangedHistory(c.Context, repo, start, end)
		if len(records) > limit {
			records = records[:limit]
		}
	} else {
		records, err = repo.GetRecentQueryRecords(c.Context, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(c.App.Writer, "No history")
		return nil
	}
	for i, r := range records {
		printRecordSummary(c.App.Writer, offset+i+1, r)
	}
	return nil
}

func historyViewCommand(c *cli.Context) error {
	n, err := strconv.Atoi(c.Args().First())
	if err != nil || n < 1 {
		return fmt.Errorf("a record number of at least 1 is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	records, err := engine.HistoryRepository().GetRecentQueryRecords(c.Context, n)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) < n {
		return fmt.Errorf("no history record #%d (%d saved)", n, len(records))
	}
	printRecord(c.App.Writer, n, records[n-1])
	return nil
}

func historySearchCommand(c *cli.Context) error {
	keyword := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if keyword == "" {
		return fmt.Errorf("a keyword is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	records, _, err := rangedHistory(c.Context, engine.HistoryRepository(), historyStart, historyEnd)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	found := 0
	for i, r := range records {
		if r.Matches(keyword) {
			printRecordSummary(c.App.Writer, i+1, r)
			found++
		}
	}
	if found == 0 {
		fmt.Fprintf(c.App.Writer, "No history matches %q\n", keyword)
		return nil
	}
	fmt.Fprintln(c.App.Writer, color.HiBlackString("%d matching records", found))
	return nil
}

func historyExportCommand(c *cli.Context) error {
	start, end, _, err := historyRange(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	records, err := engine.HistoryRepository().GetQueryRecordsByDateRange(c.Context, start, end)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	out := c.String("out")
	if out == "" {
		return writeHistoryMarkdown(c.App.Writer, records)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := writeHistoryMarkdown(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(c.App.Writer, "Exported %d records to %s\n", len(records), out)
	return nil
}

func printRecordSummary(w io.Writer, n int, r *core.QueryRecord) {
	fmt.Fprintf(w, "%s %s %s %s\n",
		color.YellowString("#%d", n),
		color.HiBlackString("%s", r.Timestamp.Format(stampLayout)),
		color.HiBlackString("[%s]", r.Style),
		color.CyanString("%s", r.Question))
	fmt.Fprintf(w, "    %s\n", r.Answer)
	if len(r.Sources) > 0 {
		titles := make([]string, len(r.Sources))
		for i, s := range r.Sources {
			titles[i] = s.Title
		}
		fmt.Fprintf(w, "    %s %s\n", color.HiBlackString("sources:"), strings.Join(titles, ", "))
	}
}

func printRecord(w io.Writer, n int, r *core.QueryRecord) {
	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s\n", color.YellowString("#%d", n), color.CyanString("%s", r.Question))
	fmt.Fprintf(w, "%s %s  %s %s  %s %s\n",
		color.HiBlackString("time:"), r.Timestamp.Format(stampLayout),
		color.HiBlackString("style:"), r.Style,
		color.HiBlackString("query:"), r.QueryID)
	if r.Blocked {
		fmt.Fprintln(w, color.RedString("%s", r.Answer))
		return
	}
	fmt.Fprintf(w, "\n%s\n", r.Answer)

	if len(r.FollowUps) > 0 {
		fmt.Fprintln(w, bold.Sprint("\nFollow-up questions"))
		for _, f := range r.FollowUps {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
	if len(r.Sources) > 0 {
		fmt.Fprintln(w, bold.Sprint("\nEvidence"))
		for i, s := range r.Sources {
			fmt.Fprintf(w, "  [%d] %s\n      %q\n", i+1, color.CyanString("%s", s.Title), s.Excerpt)
		}
		fmt.Fprintln(w, bold.Sprintf("\nSources (%d)", len(r.Sources)))
		for i, s := range r.Sources {
			fmt.Fprintf(w, "  [%d] %s %s\n", i+1, color.CyanString("%s", s.Title),
				color.HiBlackString("%s#%d score=%.3f", s.Path, s.Position, s.Score))
			fmt.Fprintf(w, "      %s\n", clip(s.Text, maxViewedText))
		}
	}
	if r.Degraded {
		fmt.Fprintln(w, color.YellowString("\nretrieval was degraded"))
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("warning:"), warning)
	}
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// writeHistoryMarkdown renders records in the order given.
func writeHistoryMarkdown(w io.Writer, records []*core.QueryRecord) error {
	var b strings.Builder
	b.WriteString("# Query History\n\n")
	fmt.Fprintf(&b, "Total queries: %d\n\n---\n\n", len(records))

	for i, r := range records {
		fmt.Fprintf(&b, "## Query %d: %s\n\n", i+1, oneLine(r.Question))
		fmt.Fprintf(&b, "**Timestamp:** %s  \n", r.Timestamp.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "**Style:** %s  \n", r.Style)
		if r.Degraded {
			b.WriteString("**Degraded:** yes  \n")
		}
		b.WriteString("\n### Answer\n\n")
		fmt.Fprintf(&b, "%s\n\n", r.Answer)

		if len(r.FollowUps) > 0 {
			b.WriteString("### Follow-up Questions\n\n")
			for _, f := range r.FollowUps {
				fmt.Fprintf(&b, "- %s\n", oneLine(f))
			}
			b.WriteString("\n")
		}
		if len(r.Warnings) > 0 {
			b.WriteString("### Warnings\n\n")
			for _, warning := range r.Warnings {
				fmt.Fprintf(&b, "- %s\n", oneLine(warning))
			}
			b.WriteString("\n")
		}
		if len(r.Sources) > 0 {
			b.WriteString("### Evidence\n\n")
			for j, s := range r.Sources {
				fmt.Fprintf(&b, "- **[Source %d]** %s\n", j+1, s.Title)
				fmt.Fprintf(&b, "  > %s\n\n", oneLine(s.Excerpt))
			}
			b.WriteString("### Sources\n\n")
			for j, s := range r.Sources {
				fmt.Fprintf(&b, "#### Source %d: %s\n\n", j+1, s.Title)
				fmt.Fprintf(&b, "**Path:** %s (chunk %d)  \n", s.Path, s.Position)
				fmt.Fprintf(&b, "**Score:** %.3f\n\n", s.Score)
				fence := codeFence(s.Text)
				fmt.Fprintf(&b, "%s\n%s\n%s\n\n", fence, s.Text, fence)
			}
		}
		b.WriteString("---\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// codeFence returns a backtick fence longer than any backtick run in text.
func codeFence(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}
