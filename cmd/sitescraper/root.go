package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitescraper.
// The root command itself performs a crawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitescraper <site> <output_dir>",
		Short: "Crawl a website and save every page as Markdown",
		Long: `sitescraper crawls a website breadth-first starting at <site> and writes a
Markdown copy of every page it reaches below <output_dir>.

Only links on the same host as <site> are followed. Each page is fetched at
most once, and pages further than --max_depth links from <site> are skipped.
Pages that cannot be fetched are still saved, with an empty body, so the
mirror shows where the site is broken.

Examples:
  # Mirror the seed page and the pages it links to
  sitescraper https://docs.example.com ./out

  # Crawl three levels deep, one request per half second, 8 at a time
  sitescraper --max_depth 3 --rate_limit 0.5 --max_concurrency 8 https://docs.example.com ./out

  # Write a Markdown crawl summary and Prometheus metrics
  sitescraper --summary crawl.md --metrics_file crawl.prom https://docs.example.com ./out

  # Route every request through a SOCKS5 proxy
  sitescraper --proxy 127.0.0.1:1080 https://docs.example.com ./out

Configuration file (.sitescraper) example:
  defaults:
    ignorePatterns: ["*.pdf"]
  sites:
    docs.example.com:
      depth: 3
      rateLimit: 0.5
      headers:
        Authorization: "Bearer token"`,
		Args:          cobra.ExactArgs(2),
		RunE:          runCrawlCmd,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	addCrawlFlags(cmd)

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
