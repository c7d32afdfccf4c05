package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitescraper/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
//  1. Type-safe markdown generation
//  2. Support for tables, lists, and code blocks
//  3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeAlert(md, summary)
	w.writeLevels(md, summary)
	w.writeStatuses(md, summary)
	w.writeFailures(md, summary)
	w.writePages(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + summary.Seed + "`"},
	}
	if summary.OutputDir != "" {
		rows = append(rows, []string{"Output Directory", "`" + summary.OutputDir + "`"})
	}
	rows = append(rows,
		[]string{"Max Depth", strconv.Itoa(summary.MaxDepth)},
		[]string{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", summary.Duration().Round(time.Millisecond).String()},
		[]string{"Pages Saved", strconv.Itoa(summary.TotalSaved())},
		[]string{"Failed Pages", strconv.Itoa(summary.TotalFailed())},
		[]string{"Save Errors", strconv.Itoa(summary.SaveErrors)},
		[]string{"Status", statusText(summary)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status text based on summary state.
func statusText(summary *model.CrawlSummary) string {
	if summary.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	return "✅ Complete"
}

// writeAlert writes an alert describing how healthy the crawl was.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	switch {
	case summary.SaveErrors > 0:
		md.Cautionf(
			"%d page(s) could not be written to disk. The mirror is incomplete.",
			summary.SaveErrors,
		)
	case summary.Interrupted:
		md.Warningf(
			"The crawl was interrupted after %d page(s). Links beyond that point were not followed.",
			len(summary.Pages),
		)
	case summary.TotalFailed() > 0:
		md.Importantf(
			"%d page(s) failed to fetch and were saved empty.",
			summary.TotalFailed(),
		)
	case len(summary.Pages) == 0:
		md.Note("No pages were crawled.")
	default:
		md.Tip("Every page was fetched and saved.")
	}
	md.PlainText("")
}

// writeLevels writes the per-depth table.
func (w *MarkdownWriter) writeLevels(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Levels")
	md.PlainText("")

	if len(summary.Levels) == 0 {
		md.PlainText("No levels were processed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Levels))
	for i, level := range summary.Levels {
		rows[i] = []string{
			strconv.Itoa(level.Depth),
			strconv.Itoa(level.Queued),
			strconv.Itoa(level.Saved),
			strconv.Itoa(level.Failed),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Queued", "Saved", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeStatuses writes the status breakdown table and pie chart.
func (w *MarkdownWriter) writeStatuses(md *markdown.Markdown, summary *model.CrawlSummary) {
	breakdown := StatusBreakdown(summary)
	if len(breakdown) == 0 {
		return
	}

	md.H2("Responses")
	md.PlainText("")

	rows := make([][]string, len(breakdown))
	for i, s := range breakdown {
		rows[i] = []string{label(s.Class), strconv.Itoa(s.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(breakdown) > 1 {
		w.writePieChart(md, breakdown)
	}
}

// writePieChart writes a mermaid pie chart for the status distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, breakdown []StatusCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Response Status Distribution"),
		piechart.WithShowData(true),
	)
	for _, s := range breakdown {
		chart.LabelAndIntValue(label(s.Class), uint64(s.Count)) //nolint:gosec // counts are never negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures writes a table of pages that failed to fetch or save.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.CrawlSummary) {
	failed := summary.FailedPages()
	if len(failed) == 0 {
		return
	}

	rows := make([][]string, 0, len(failed))
	for _, p := range failed {
		status := "-"
		if p.StatusCode != 0 {
			status = strconv.Itoa(p.StatusCode)
		}
		rows = append(rows, []string{
			truncateString(p.URL, 60),
			status,
			truncateString(p.Error, 80),
		})
	}

	md.H2("Failed Pages")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePages writes every saved page inside a collapsible block per level.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, summary *model.CrawlSummary) {
	if len(summary.Pages) == 0 {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	for _, level := range summary.Levels {
		pages := make([]string, 0)
		for _, p := range summary.Pages {
			if p.Depth != level.Depth || p.Path == "" {
				continue
			}
			entry := p.URL + " → `" + p.Path + "`"
			if p.Title != "" {
				entry = p.Title + ": " + entry
			}
			pages = append(pages, entry)
		}
		if len(pages) == 0 {
			continue
		}

		inner := markdown.NewMarkdown(io.Discard).BulletList(pages...).String()
		md.Details("Depth "+strconv.Itoa(level.Depth)+" ("+strconv.Itoa(len(pages))+" pages)", inner)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitescraper](https://github.com/nao1215/sitescraper)*")
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
