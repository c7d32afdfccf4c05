package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/crawler"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed when --limit is not set.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show recorded crawl runs",
		Long: `History lists the crawl runs recorded in the history database.

Every crawl is recorded unless --no_history is given. A run stores its
counters and, for every page, the status code, output path and a hash of the
rendered Markdown, which 'sitescraper compare' uses to find changed pages.

Examples:
  # List the latest runs of every site
  sitescraper history

  # List the runs of one site
  sitescraper history https://docs.example.com

  # Show the pages of run 12
  sitescraper history --run 12

  # List every site that has been crawled
  sitescraper history --sites

  # Output JSON
  sitescraper history --json https://docs.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run", "r", 0,
		"Show the pages of the run with this ID")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().BoolP("sites", "s", false,
		"List every site that has recorded runs")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db_dir", config.XDGDataDir(),
		"Directory of the crawl history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database so a typo never
	// creates an empty one.
	var seed string
	if len(args) > 0 {
		normalized, err := crawler.NormalizeSeed(args[0])
		if err != nil {
			return fmt.Errorf("invalid site: %w", err)
		}
		seed = normalized
	}

	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	listSites, err := cmd.Flags().GetBool("sites")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db_dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listSites:
		return listRecordedSites(ctx, db, out, jsonOutput)
	case runID > 0:
		return showRun(ctx, db, out, runID, jsonOutput)
	default:
		return listRuns(ctx, db, out, seed, limit, jsonOutput)
	}
}

// listRecordedSites lists every seed with at least one run.
func listRecordedSites(ctx context.Context, db *database.CrawlDB, out io.Writer, jsonOutput bool) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(seeds)
		return err
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitescraper <site> <output_dir>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'sitescraper history <site>' to see the runs of a site.")
	return nil
}

// listRuns lists runs newest first, optionally restricted to one seed.
func listRuns(ctx context.Context, db *database.CrawlDB, out io.Writer, seed string, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(runs)
		return err
	}

	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No crawl history found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No crawl history found.")
		}
		fmt.Fprintln(out, "\nUse 'sitescraper <site> <output_dir>' to crawl a site.")
		return nil
	}

	if seed != "" {
		fmt.Fprintf(out, "Crawl history for %s (%d runs):\n\n", seed, len(runs))
	} else {
		fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	}
	fmt.Fprintf(out, "  %-6s  %-19s  %5s  %6s  %-11s  %s\n", "ID", "Started", "Pages", "Failed", "Status", "Site")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %5d  %6d  %-11s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Pages,
			run.Failed,
			runStatus(run),
			run.Seed,
		)
	}

	fmt.Fprintln(out, "\nUse 'sitescraper history --run <id>' to see the pages of a run.")
	fmt.Fprintln(out, "Use 'sitescraper compare <site>' to compare the latest two runs of a site.")
	return nil
}

// runDetail is the JSON form of one run with its pages.
type runDetail struct {
	Run   *database.Run      `json:"run"`
	Pages []model.PageRecord `json:"pages"`
}

// showRun prints one run and its pages in crawl order.
func showRun(ctx context.Context, db *database.CrawlDB, out io.Writer, runID int64, jsonOutput bool) error {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	if run == nil {
		return fmt.Errorf("run with ID %d not found", runID)
	}

	pages, err := db.ListPages(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get pages of run %d: %w", runID, err)
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(runDetail{Run: run, Pages: pages})
		return err
	}

	fmt.Fprintf(out, "Run #%d: %s\n", run.ID, run.Seed)
	fmt.Fprintf(out, "  Started:    %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.Finished() {
		fmt.Fprintf(out, "  Duration:   %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "  Output:     %s\n", run.OutputDir)
	fmt.Fprintf(out, "  Max depth:  %d\n", run.MaxDepth)
	fmt.Fprintf(out, "  Status:     %s\n", runStatus(*run))
	fmt.Fprintf(out, "  Pages:      %d (%d failed, %d save errors)\n\n", len(pages), run.Failed, run.SaveErrors)

	for _, page := range pages {
		fmt.Fprintf(out, "  [%d] %-5s %s -> %s\n", page.Depth, pageStatus(page), page.URL, page.Path)
	}
	return nil
}

// runStatus describes how a run ended.
func runStatus(run database.Run) string {
	switch {
	case !run.Finished():
		return "unfinished"
	case run.Interrupted:
		return "interrupted"
	default:
		return "complete"
	}
}

// pageStatus is the status code of a page, "ERR" for a page without a
// response, or "SAVE!" for a page that could not be written.
func pageStatus(page model.PageRecord) string {
	switch {
	case page.SaveFailed:
		return "SAVE!"
	case page.StatusCode == 0 && page.Failed:
		return "ERR"
	case page.StatusCode == 0:
		return "-"
	default:
		return strconv.Itoa(page.StatusCode)
	}
}
