package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/sitescraper/internal/model"
)

// RunPages is one recorded crawl run with its pages.
type RunPages struct {
	ID        int64
	Seed      string
	StartedAt time.Time
	Pages     []model.PageRecord
}

// RunInfo is the metadata of one side of a comparison.
type RunInfo struct {
	ID        int64     `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Pages     int       `json:"pages"`
	Failed    int       `json:"failed"`
}

// Comparison holds the page-level differences between two runs of a seed.
type Comparison struct {
	// Seed is the crawl seed of the current run.
	Seed string `json:"seed"`

	// Previous describes the older run.
	Previous RunInfo `json:"previous"`

	// Current describes the newer run.
	Current RunInfo `json:"current"`

	// Added lists URLs that were only crawled in the current run.
	Added []string `json:"added,omitempty"`

	// Removed lists URLs that were only crawled in the previous run.
	Removed []string `json:"removed,omitempty"`

	// Changed lists URLs whose rendered content differs.
	Changed []string `json:"changed,omitempty"`

	// NewlyFailed lists URLs that succeeded before and fail now.
	NewlyFailed []string `json:"newly_failed,omitempty"`

	// Recovered lists URLs that failed before and succeed now.
	Recovered []string `json:"recovered,omitempty"`

	// UnchangedCount is the number of URLs with identical content.
	UnchangedCount int `json:"unchanged_count"`
}

// HasChanges reports whether anything differs between the two runs.
func (c *Comparison) HasChanges() bool {
	return len(c.Added)+len(c.Removed)+len(c.Changed)+len(c.NewlyFailed)+len(c.Recovered) > 0
}

// CompareRuns compares two runs page by page using the content hashes.
// Every list in the result is sorted.
func CompareRuns(previous, current RunPages) *Comparison {
	result := &Comparison{
		Seed:     current.Seed,
		Previous: runInfo(previous),
		Current:  runInfo(current),
	}

	previousPages := make(map[string]model.PageRecord, len(previous.Pages))
	for _, p := range previous.Pages {
		previousPages[p.URL] = p
	}
	currentPages := make(map[string]model.PageRecord, len(current.Pages))
	for _, p := range current.Pages {
		currentPages[p.URL] = p
	}

	for url, cur := range currentPages {
		prev, ok := previousPages[url]
		switch {
		case !ok:
			result.Added = append(result.Added, url)
		case !prev.Failed && cur.Failed:
			result.NewlyFailed = append(result.NewlyFailed, url)
		case prev.Failed && !cur.Failed:
			result.Recovered = append(result.Recovered, url)
		case prev.ContentHash != cur.ContentHash:
			result.Changed = append(result.Changed, url)
		default:
			result.UnchangedCount++
		}
	}
	for url := range previousPages {
		if _, ok := currentPages[url]; !ok {
			result.Removed = append(result.Removed, url)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Changed)
	sort.Strings(result.NewlyFailed)
	sort.Strings(result.Recovered)
	return result
}

func runInfo(run RunPages) RunInfo {
	info := RunInfo{ID: run.ID, StartedAt: run.StartedAt, Pages: len(run.Pages)}
	for _, p := range run.Pages {
		if p.Failed {
			info.Failed++
		}
	}
	return info
}

// WriteComparisonText writes a human-readable comparison.
func WriteComparisonText(w io.Writer, c *Comparison) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", c.Seed)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Previous run: #%d  %s  (%d pages, %d failed)\n",
		c.Previous.ID, c.Previous.StartedAt.Format("2006-01-02 15:04:05"), c.Previous.Pages, c.Previous.Failed)
	fmt.Fprintf(&sb, "Current run:  #%d  %s  (%d pages, %d failed)\n",
		c.Current.ID, c.Current.StartedAt.Format("2006-01-02 15:04:05"), c.Current.Pages, c.Current.Failed)

	if !c.HasChanges() {
		fmt.Fprintf(&sb, "\nNo changes: %d page(s) identical\n", c.UnchangedCount)
		_, err := io.WriteString(w, sb.String())
		return err
	}

	sections := []struct {
		title  string
		marker string
		urls   []string
	}{
		{"Added", "+", c.Added},
		{"Removed", "-", c.Removed},
		{"Changed", "~", c.Changed},
		{"Newly failed", "!", c.NewlyFailed},
		{"Recovered", "*", c.Recovered},
	}
	for _, s := range sections {
		if len(s.urls) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", s.title, len(s.urls))
		for _, u := range s.urls {
			fmt.Fprintf(&sb, "  [%s] %s\n", s.marker, u)
		}
	}

	if c.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d page(s)\n", c.UnchangedCount)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteComparisonMarkdown writes the comparison as a Markdown document.
func WriteComparisonMarkdown(w io.Writer, c *Comparison) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Comparison: " + c.Seed)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run", "#" + strconv.FormatInt(c.Previous.ID, 10), "#" + strconv.FormatInt(c.Current.ID, 10), "-"},
			{"Date", c.Previous.StartedAt.Format("2006-01-02 15:04"), c.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Pages", strconv.Itoa(c.Previous.Pages), strconv.Itoa(c.Current.Pages), formatDelta(c.Current.Pages - c.Previous.Pages)},
			{"Failed", strconv.Itoa(c.Previous.Failed), strconv.Itoa(c.Current.Failed), formatDelta(c.Current.Failed - c.Previous.Failed)},
		},
	})
	md.PlainText("")

	if !c.HasChanges() {
		md.Tip("No changes between the two runs.")
		return md.Build()
	}

	sections := []struct {
		title string
		urls  []string
	}{
		{"Added", c.Added},
		{"Removed", c.Removed},
		{"Changed", c.Changed},
		{"Newly Failed", c.NewlyFailed},
		{"Recovered", c.Recovered},
	}
	for _, s := range sections {
		if len(s.urls) == 0 {
			continue
		}
		md.H2(s.title + " (" + strconv.Itoa(len(s.urls)) + ")")
		md.PlainText("")
		md.BulletList(s.urls...)
		md.PlainText("")
	}

	if c.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d page(s) unchanged*", c.UnchangedCount)
	}
	return md.Build()
}

// WriteComparisonJSON writes the comparison as indented JSON.
func WriteComparisonJSON(w io.Writer, c *Comparison) error {
	_, err := NewJSONWriter(w, WithPrettyPrint()).WriteValue(c)
	return err
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
