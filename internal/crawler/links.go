package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// LinkFilter turns the raw hrefs of a page into absolute URLs worth crawling.
//
// Logic, applied to every href:
//  1. Empty, bare "#" and javascript:/mailto:/tel:/data: hrefs are dropped
//  2. The href is resolved against the page base chosen by BaseFor
//  3. Anything that is not http or https is dropped
//  4. The host must equal the seed host (case-insensitive, port included)
//  5. The path must not match an ignore pattern and, when follow patterns
//     are set, must match one of them
type LinkFilter struct {
	seedHost       string
	ignorePatterns []string
	followPatterns []string
}

// NewLinkFilter creates a filter for a crawl started at seed.
func NewLinkFilter(seed string, ignorePatterns, followPatterns []string) (*LinkFilter, error) {
	u, err := parseSeed(seed)
	if err != nil {
		return nil, err
	}
	return &LinkFilter{
		seedHost:       u.Host,
		ignorePatterns: ignorePatterns,
		followPatterns: followPatterns,
	}, nil
}

// SeedHost returns the host links must be on.
func (f *LinkFilter) SeedHost() string {
	return f.seedHost
}

// BaseFor returns the base relative links on a page resolve against.
// A redirect that stays on the seed host keeps the redirect target as base.
// A redirect to any other host falls back to the requested URL, so links on
// the page stay in scope.
func (f *LinkFilter) BaseFor(requested, final string) string {
	if final == "" {
		return requested
	}
	u, err := url.Parse(final)
	if err != nil || !strings.EqualFold(u.Host, f.seedHost) {
		return requested
	}
	return final
}

// Resolve returns the crawlable absolute URLs among hrefs found on the page
// at base, in their original order. Duplicates are kept; the engine
// deduplicates against everything it has seen.
func (f *LinkFilter) Resolve(base string, hrefs []string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return make([]string, 0)
	}

	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs, ok := f.resolve(baseURL, href)
		if ok {
			out = append(out, abs)
		}
	}
	return out
}

func (f *LinkFilter) resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || hasIgnoredScheme(href) {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)

	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(abs.Host, f.seedHost) {
		return "", false
	}
	if !f.shouldCrawl(abs) {
		return "", false
	}
	return abs.String(), true
}

// shouldCrawl checks the URL path against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (f *LinkFilter) shouldCrawl(u *url.URL) bool {
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(f.followPatterns) == 0 {
		return true
	}
	for _, pattern := range f.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

var ignoredSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

func hasIgnoredScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range ignoredSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a prefix
//
// Examples:
//   - "/admin/*" matches "/admin", "/admin/users", "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Bare name patterns like "draft-*" are matched against the last segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}
	return false
}

// VisitKey normalizes a URL for the visited set.
//
// Scheme and host are lowercased and an empty path becomes "/", so
// "HTTPS://Docs.Example.com" and "https://docs.example.com/" are the same
// page. The fragment is kept: it selects a distinct output file.
func VisitKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u.String()
}

// parseSeed validates the crawl seed.
func parseSeed(seed string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	return u, nil
}

// NormalizeSeed returns seed in the form Crawl records it in the summary.
func NormalizeSeed(seed string) (string, error) {
	u, err := parseSeed(seed)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
