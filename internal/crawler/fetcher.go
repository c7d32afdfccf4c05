package crawler

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Default fetch settings.
const (
	// DefaultFetchTimeout bounds a single request, body included.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxBodySize is the largest body read from a response.
	// Larger bodies are truncated.
	DefaultMaxBodySize = 5 * 1024 * 1024

	defaultUserAgent = "sitescraper/1.0 (+https://github.com/nao1215/sitescraper)"
)

// Response is a successfully fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status code (always 2xx).
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the decoded response body, at most the configured size.
	Body []byte

	// Truncated is true when the body was cut at the size limit.
	Truncated bool
}

// Fetcher retrieves the body of a URL.
// Implementations return *FetchError for non-2xx responses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher fetches pages with an *http.Client.
//
// Design decision: We require an external client because:
//  1. Proxy, cookie and header configuration is handled by the transport package
//  2. Tests can pass an httptest server's client
//  3. Connection pooling is shared by every worker of a crawl
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetchTimeout sets the per-request timeout. Zero or negative disables it.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of decoded body bytes kept.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates a fetcher using client. A nil client uses
// http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...FetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		timeout:     DefaultFetchTimeout,
		userAgent:   defaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a single GET request. There are no retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, truncated, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// readBody decodes the response according to Content-Encoding and reads at
// most limit bytes of the decoded content.
func readBody(resp *http.Response, limit int64) ([]byte, bool, error) {
	reader, closeFn, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, false, err
	}
	defer closeFn()

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// decodeBody wraps body in the decompressor for encoding.
// Unknown encodings are passed through untouched.
func decodeBody(body io.Reader, encoding string) (io.Reader, func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil //nolint:errcheck // read-only
	case "br":
		return brotli.NewReader(body), noop, nil
	case "deflate":
		// Servers disagree on whether "deflate" means zlib-wrapped or raw.
		buffered := bufio.NewReader(body)
		if isZlibHeader(buffered) {
			zr, err := zlib.NewReader(buffered)
			if err != nil {
				return nil, noop, fmt.Errorf("deflate decode: %w", err)
			}
			return zr, func() { _ = zr.Close() }, nil //nolint:errcheck // read-only
		}
		fr := flate.NewReader(buffered)
		return fr, func() { _ = fr.Close() }, nil //nolint:errcheck // read-only
	default:
		return body, noop, nil
	}
}

// isZlibHeader peeks at the first two bytes for a zlib (RFC 1950) header.
func isZlibHeader(r *bufio.Reader) bool {
	header, err := r.Peek(2)
	if err != nil {
		return false
	}
	cmf, flg := header[0], header[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
