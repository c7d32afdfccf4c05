package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitescraper/internal/model"
)

// JSONWriter outputs summaries in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in JSON format.
func (w *JSONWriter) Write(summary *model.CrawlSummary) (int, error) {
	return w.WriteValue(summary)
}

// WriteValue marshals any value to JSON and writes it to the output.
// The history and compare commands use it for their own result types.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps a summary with metadata and derived totals.
//
// Design decision: We wrap the summary rather than adding fields to
// CrawlSummary because the version and totals are output concerns.
type JSONReport struct {
	// Version is the sitescraper version that produced the crawl.
	Version string `json:"version"`

	// TotalSaved is the number of pages written.
	TotalSaved int `json:"total_saved"`

	// TotalFailed is the number of pages whose fetch failed.
	TotalFailed int `json:"total_failed"`

	// DurationSeconds is the crawl wall time.
	DurationSeconds float64 `json:"duration_seconds"`

	// Statuses counts pages per status class.
	Statuses []StatusCount `json:"statuses"`

	// Summary is the full crawl summary.
	Summary *model.CrawlSummary `json:"summary"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(summary *model.CrawlSummary, version string) *JSONReport {
	return &JSONReport{
		Version:         version,
		TotalSaved:      summary.TotalSaved(),
		TotalFailed:     summary.TotalFailed(),
		DurationSeconds: summary.Duration().Seconds(),
		Statuses:        StatusBreakdown(summary),
		Summary:         summary,
	}
}

// FullJSONWriter outputs summaries with the metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the sitescraper version string.
	version string
}

// NewFullJSONWriter creates a writer for wrapped summaries.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the summary wrapped with metadata.
func (w *FullJSONWriter) Write(summary *model.CrawlSummary) (int, error) {
	return w.WriteValue(NewJSONReport(summary, w.version))
}
