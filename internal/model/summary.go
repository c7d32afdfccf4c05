package model

import (
	"sort"
	"time"
)

// LevelSummary holds the counters for one breadth-first level.
type LevelSummary struct {
	// Depth is the level number. The seed level is 0.
	Depth int `json:"depth"`

	// Queued is the number of URLs dispatched at this level.
	Queued int `json:"queued"`

	// Saved is the number of pages written at this level, failed fetches included.
	Saved int `json:"saved"`

	// Failed is the number of pages whose fetch or render failed.
	Failed int `json:"failed"`
}

// CrawlSummary is the result of one crawl.
//
// Design decision: The summary carries every PageRecord rather than only
// counters because:
//  1. The Markdown and JSON reports list pages individually
//  2. Tests can assert on exactly which URLs were fetched and at which depth
type CrawlSummary struct {
	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// OutputDir is the mirror root directory.
	OutputDir string `json:"output_dir,omitempty"`

	// MaxDepth is the configured depth bound.
	MaxDepth int `json:"max_depth"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl finished or was interrupted.
	FinishedAt time.Time `json:"finished_at"`

	// Levels contains one entry per level that was processed.
	Levels []LevelSummary `json:"levels"`

	// Pages contains one record per saved page, in processing order.
	Pages []PageRecord `json:"pages"`

	// SaveErrors counts pages that could not be written to disk.
	SaveErrors int `json:"save_errors"`

	// Interrupted is true when the crawl was cancelled before the frontier
	// was exhausted.
	Interrupted bool `json:"interrupted,omitempty"`
}

// NewCrawlSummary creates an empty summary for a crawl starting now.
func NewCrawlSummary(seed string, maxDepth int) *CrawlSummary {
	return &CrawlSummary{
		Seed:      seed,
		MaxDepth:  maxDepth,
		StartedAt: time.Now(),
		Levels:    make([]LevelSummary, 0),
		Pages:     make([]PageRecord, 0),
	}
}

// Duration returns how long the crawl ran.
// Returns zero while the crawl is still running.
func (s *CrawlSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// TotalSaved returns the number of pages written across all levels.
func (s *CrawlSummary) TotalSaved() int {
	total := 0
	for _, level := range s.Levels {
		total += level.Saved
	}
	return total
}

// TotalFailed returns the number of failed fetches across all levels.
func (s *CrawlSummary) TotalFailed() int {
	total := 0
	for _, level := range s.Levels {
		total += level.Failed
	}
	return total
}

// URLs returns the crawled URLs in sorted order.
func (s *CrawlSummary) URLs() []string {
	urls := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		urls = append(urls, p.URL)
	}
	sort.Strings(urls)
	return urls
}

// FailedPages returns the records of pages that failed to fetch or save,
// in save order.
func (s *CrawlSummary) FailedPages() []PageRecord {
	var failed []PageRecord
	for _, p := range s.Pages {
		if p.Failed || p.SaveFailed {
			failed = append(failed, p)
		}
	}
	return failed
}
