package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// PageResult is the outcome of one fetch task: the page converted to Markdown
// and the raw hyperlinks found on it.
//
// A PageResult is produced exactly once per dispatched URL and consumed once by
// the engine. A failed fetch still yields a PageResult: Markdown and Links are
// empty and Err records why.
type PageResult struct {
	// URL is the URL that was requested, exactly as it was dispatched.
	URL string `json:"url"`

	// FinalURL is the URL the response came from when redirects were
	// followed. Empty when it equals URL.
	FinalURL string `json:"final_url,omitempty"`

	// Markdown is the rendered page body. Empty on failure.
	Markdown string `json:"markdown"`

	// Links contains the href values of the page's anchors in document order.
	// They are not resolved or filtered.
	Links []string `json:"links,omitempty"`

	// Title is the text of the <title> element, if any.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP status code. Zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Err is the fetch or render failure. Nil on success.
	Err error `json:"-"`

	// Elapsed is the wall time spent fetching and rendering the page.
	Elapsed time.Duration `json:"elapsed"`
}

// Failed reports whether the page could not be fetched or rendered.
func (r PageResult) Failed() bool {
	return r.Err != nil
}

// ErrorText returns the failure message, or an empty string on success.
func (r PageResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// PageRecord describes what the engine did with one PageResult.
// Observers (history database, metrics, progress output) receive one record
// per saved page.
type PageRecord struct {
	// URL is the crawled URL.
	URL string `json:"url"`

	// Path is the file the page was written to. Empty when saving failed.
	Path string `json:"path,omitempty"`

	// Depth is the BFS level the page was fetched at. The seed is depth 0.
	Depth int `json:"depth"`

	// Title is the page title, if any.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP status code. Zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Failed is true when the fetch or render failed.
	Failed bool `json:"failed"`

	// Error holds the fetch, render or save error message.
	Error string `json:"error,omitempty"`

	// SaveFailed is true when the page could not be written to disk.
	SaveFailed bool `json:"save_failed,omitempty"`

	// ContentHash is the SHA3-256 hash of the rendered Markdown.
	// Identical content across runs produces the same hash.
	ContentHash string `json:"content_hash"`

	// Links is the number of raw hyperlinks found on the page.
	Links int `json:"links"`

	// Elapsed is the fetch wall time.
	Elapsed time.Duration `json:"elapsed"`
}

// NewPageRecord builds the record for a result fetched at depth.
// The caller fills in Path or the save error after persisting.
func NewPageRecord(result PageResult, depth int) PageRecord {
	return PageRecord{
		URL:         result.URL,
		Depth:       depth,
		Title:       result.Title,
		StatusCode:  result.StatusCode,
		Failed:      result.Failed(),
		Error:       result.ErrorText(),
		ContentHash: HashContent(result.Markdown),
		Links:       len(result.Links),
		Elapsed:     result.Elapsed,
	}
}

// HashContent returns the hex-encoded SHA3-256 hash of content.
//
// The hash is only compared for equality between runs. An empty page still
// gets a stable, non-empty hash.
func HashContent(content string) string {
	sum := sha3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
