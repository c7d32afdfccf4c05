// Package report renders crawl summaries and run comparisons.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: A Markdown document for sharing or committing next to the mirror
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate report writing from the crawl data structures
// (which are in the model package) because:
//  1. New output formats can be added without touching the crawler
//  2. The same summary can be written to several destinations
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
