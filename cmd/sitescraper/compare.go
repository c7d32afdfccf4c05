package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/sitescraper/internal/config"
	"github.com/nao1215/sitescraper/internal/crawler"
	"github.com/nao1215/sitescraper/internal/database"
	"github.com/nao1215/sitescraper/internal/report"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// This command compares two recorded runs of the same site page by page.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <site>",
		Short: "Compare the pages of two crawl runs",
		Long: `Compare displays the differences between two recorded crawls of a site.

Pages are matched by URL and compared by the hash of their rendered Markdown.
The comparison shows:
- Pages that were found only in the newer run
- Pages that disappeared since the older run
- Pages whose content changed
- Pages that started failing, and pages that recovered

By default the latest two runs of the site are compared. Use
'sitescraper history <site>' to see the available run IDs.

Examples:
  # Compare the latest two crawls
  sitescraper compare https://docs.example.com

  # Compare the latest crawl with run 5
  sitescraper compare --with-run 5 https://docs.example.com

  # Output comparison in Markdown format
  sitescraper compare --markdown https://docs.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64P("with-run", "i", 0,
		"Compare the latest run with the run of this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db_dir", config.XDGDataDir(),
		"Directory of the crawl history database")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	seed, err := crawler.NormalizeSeed(args[0])
	if err != nil {
		return fmt.Errorf("invalid site: %w", err)
	}

	withRun, err := cmd.Flags().GetInt64("with-run")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
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

	comparison, err := compareRuns(cmd.Context(), db, seed, withRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return report.WriteComparisonJSON(out, comparison)
	case markdownOutput:
		return report.WriteComparisonMarkdown(out, comparison)
	default:
		return report.WriteComparisonText(out, comparison)
	}
}

// compareRuns loads the two runs to compare and diffs them.
// The latest run of seed is always the current one.
func compareRuns(ctx context.Context, db *database.CrawlDB, seed string, withRun int64) (*report.Comparison, error) {
	runs, err := db.ListRuns(ctx, seed, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", seed)
	}
	if len(runs) < 2 && withRun == 0 {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	current := runs[0]
	var previous database.Run

	if withRun > 0 {
		run, err := db.GetRun(ctx, withRun)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", withRun, err)
		}
		if run == nil {
			return nil, fmt.Errorf("run with ID %d not found", withRun)
		}
		if run.Seed != seed {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", withRun, run.Seed, seed)
		}
		if run.ID == current.ID {
			return nil, errors.New("cannot compare the latest run with itself")
		}
		previous = *run
	} else {
		previous = runs[1]
	}

	previousPages, err := loadRunPages(ctx, db, previous)
	if err != nil {
		return nil, err
	}
	currentPages, err := loadRunPages(ctx, db, current)
	if err != nil {
		return nil, err
	}

	return report.CompareRuns(previousPages, currentPages), nil
}

// loadRunPages reads the pages of run.
func loadRunPages(ctx context.Context, db *database.CrawlDB, run database.Run) (report.RunPages, error) {
	pages, err := db.ListPages(ctx, run.ID)
	if err != nil {
		return report.RunPages{}, fmt.Errorf("failed to get pages of run %d: %w", run.ID, err)
	}
	return report.RunPages{
		ID:        run.ID,
		Seed:      run.Seed,
		StartedAt: run.StartedAt,
		Pages:     pages,
	}, nil
}
