package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is printed to the terminal when a crawl ends.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
//  1. It works in all terminals without compatibility issues
//  2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// verbose lists every page, not only the failed ones.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables listing of every saved page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeLevels(&sb, summary)
	w.writeFailures(&sb, summary)
	if w.verbose {
		w.writePages(&sb, summary)
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the crawl information block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                     SITESCRAPER CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:        %s\n", summary.Seed)
	if summary.OutputDir != "" {
		fmt.Fprintf(sb, "Output:      %s\n", summary.OutputDir)
	}
	fmt.Fprintf(sb, "Max depth:   %d\n", summary.MaxDepth)
	fmt.Fprintf(sb, "Duration:    %s\n", summary.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Pages saved: %d\n", summary.TotalSaved())
	fmt.Fprintf(sb, "Failed:      %d\n", summary.TotalFailed())
	if summary.SaveErrors > 0 {
		fmt.Fprintf(sb, "Save errors: %d\n", summary.SaveErrors)
	}

	if summary.Interrupted {
		sb.WriteString("Status:      INTERRUPTED (partial results)\n")
	} else {
		sb.WriteString("Status:      Complete\n")
	}
	sb.WriteString("\n")
}

// writeLevels writes one line per BFS level.
func (w *SimpleWriter) writeLevels(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.Levels) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nLEVELS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  %-6s  %-8s  %-8s  %-8s\n", "Depth", "Queued", "Saved", "Failed")
	for _, level := range summary.Levels {
		fmt.Fprintf(sb, "  %-6d  %-8d  %-8d  %-8d\n", level.Depth, level.Queued, level.Saved, level.Failed)
	}
	sb.WriteString("\n")
}

// writeFailures lists pages that failed to fetch or save.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.CrawlSummary) {
	failed := summary.FailedPages()
	if len(failed) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nFAILED PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, p := range failed {
		fmt.Fprintf(sb, "  [!] %s\n", p.URL)
		if p.Error != "" {
			fmt.Fprintf(sb, "      %s\n", p.Error)
		}
	}
	sb.WriteString("\n")
}

// writePages lists every page and where it was written.
func (w *SimpleWriter) writePages(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nPAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, p := range summary.Pages {
		fmt.Fprintf(sb, "  [%d] %s\n", p.Depth, p.URL)
		if p.Path != "" {
			fmt.Fprintf(sb, "      -> %s\n", p.Path)
		}
	}
	sb.WriteString("\n")
}
