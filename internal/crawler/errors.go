package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Crawl errors.
var (
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("seed must be an absolute http or https URL")

	// ErrNoFetcher is returned by a Worker constructed without a Fetcher.
	ErrNoFetcher = errors.New("no fetcher configured")
)

// FetchError reports a response with a non-2xx status code.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code received.
	StatusCode int
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCodeOf returns the HTTP status code carried by err, or 0.
func StatusCodeOf(err error) int {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	return 0
}
