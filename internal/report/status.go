package report

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/sitescraper/internal/model"
)

// Status classes, in display order.
const (
	StatusSuccess      = "success"
	StatusRedirect     = "redirect"
	StatusClientError  = "client error"
	StatusServerError  = "server error"
	StatusNetworkError = "network error"
)

var statusOrder = []string{
	StatusSuccess,
	StatusRedirect,
	StatusClientError,
	StatusServerError,
	StatusNetworkError,
}

// StatusCount is the number of pages in one status class.
type StatusCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// StatusClass groups a page by its HTTP status code.
// A failed page without a status code never got a response.
func StatusClass(record model.PageRecord) string {
	code := record.StatusCode
	switch {
	case code >= 200 && code < 300:
		return StatusSuccess
	case code >= 300 && code < 400:
		return StatusRedirect
	case code >= 400 && code < 500:
		return StatusClientError
	case code >= 500:
		return StatusServerError
	case record.Failed:
		return StatusNetworkError
	default:
		return StatusSuccess
	}
}

// StatusBreakdown counts the pages of summary per status class.
// Classes with no pages are omitted.
func StatusBreakdown(summary *model.CrawlSummary) []StatusCount {
	counts := make(map[string]int)
	for _, p := range summary.Pages {
		counts[StatusClass(p)]++
	}

	out := make([]StatusCount, 0, len(counts))
	for _, class := range statusOrder {
		if n := counts[class]; n > 0 {
			out = append(out, StatusCount{Class: class, Count: n})
		}
	}
	return out
}

// label turns a status class into a display label ("client error" -> "Client Error").
func label(class string) string {
	return cases.Title(language.English).String(class)
}
