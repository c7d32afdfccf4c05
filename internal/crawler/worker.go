package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
	"github.com/nao1215/sitescraper/internal/render"
)

// Renderer converts a fetched body into Markdown, title and raw links.
type Renderer interface {
	Render(body io.Reader, contentType string) (*render.Page, error)
}

// Limiter paces requests. *ratelimit.Limiter satisfies it, including a nil one.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Worker performs one fetch task: wait for the rate limiter, fetch the page,
// render it, and extract its links.
//
// Design decision: Do never returns an error because:
//  1. One broken page must not abort the level it belongs to
//  2. The engine still has to save and mark a failed URL, so it needs a result
//  3. The failure reason travels in PageResult.Err for observers and reports
type Worker struct {
	fetcher  Fetcher
	renderer Renderer
	limiter  Limiter
	logger   *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLimiter shares a rate limiter with the worker. Nil disables limiting.
func WithLimiter(l Limiter) WorkerOption {
	return func(w *Worker) {
		w.limiter = l
	}
}

// WithWorkerLogger sets the logger failures are reported to.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker creates a Worker. A nil renderer uses render.NewHTMLRenderer.
func NewWorker(fetcher Fetcher, renderer Renderer, opts ...WorkerOption) *Worker {
	if renderer == nil {
		renderer = render.NewHTMLRenderer()
	}
	w := &Worker{
		fetcher:  fetcher,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Do fetches and renders pageURL. Any failure is logged at Warn and returned
// as a PageResult with empty Markdown and Links and Err set.
func (w *Worker) Do(ctx context.Context, pageURL string) model.PageResult {
	start := time.Now()
	result, err := w.do(ctx, pageURL)
	result.URL = pageURL
	result.Elapsed = time.Since(start)

	if err != nil {
		w.logger.Warn("error scraping page", "url", pageURL, "error", err)
		return model.PageResult{
			URL:        pageURL,
			Links:      make([]string, 0),
			StatusCode: StatusCodeOf(err),
			Err:        err,
			Elapsed:    result.Elapsed,
		}
	}

	w.logger.Debug("scraped page",
		"url", pageURL,
		"status", result.StatusCode,
		"links", len(result.Links),
		"elapsed", result.Elapsed,
	)
	return result
}

func (w *Worker) do(ctx context.Context, pageURL string) (model.PageResult, error) {
	if w.fetcher == nil {
		return model.PageResult{}, ErrNoFetcher
	}

	if w.limiter != nil {
		if err := w.limiter.Acquire(ctx); err != nil {
			return model.PageResult{}, err
		}
	}

	resp, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return model.PageResult{}, err
	}
	if resp.Truncated {
		w.logger.Debug("response body truncated", "url", pageURL, "size", len(resp.Body))
	}

	page, err := w.renderer.Render(bytes.NewReader(resp.Body), resp.ContentType)
	if err != nil {
		return model.PageResult{}, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}

	links := page.Links
	if links == nil {
		links = make([]string, 0)
	}
	result := model.PageResult{
		Markdown:   page.Markdown,
		Links:      links,
		Title:      page.Title,
		StatusCode: resp.StatusCode,
	}
	if resp.URL != pageURL {
		result.FinalURL = resp.URL
	}
	return result, nil
}
