package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
)

// DefaultMaxDepth is the depth bound used when none is configured.
const DefaultMaxDepth = 1

// Runner executes one level of URLs. *Dispatcher satisfies it.
type Runner interface {
	Run(ctx context.Context, urls []string) []model.PageResult
}

// Engine performs a breadth-first crawl of a single site.
//
// Level by level, the engine:
//  1. Dispatches the frontier and waits for every result
//  2. Puts the results back into frontier order
//  3. Marks each page visited, saves it, and reports it to the observers
//  4. Builds the next frontier from same-host links not yet seen
//
// The seed is depth 0. Pages at maxDepth are saved but their links are never
// fetched. A failed fetch is saved as an empty page and never retried.
type Engine struct {
	runner         Runner
	saver          Saver
	maxDepth       int
	ignorePatterns []string
	followPatterns []string
	observers      []Observer
	logger         *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the seed, 1 = the seed plus the pages it links to, etc.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		if depth < 0 {
			depth = 0
		}
		e.maxDepth = depth
	}
}

// WithIgnorePatterns sets URL path patterns that are never followed.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) EngineOption {
	return func(e *Engine) {
		e.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the crawl to URL paths matching at least one
// pattern. Empty means all paths are allowed (subject to ignore patterns).
func WithFollowPatterns(patterns []string) EngineOption {
	return func(e *Engine) {
		e.followPatterns = patterns
	}
}

// WithObservers adds observers notified of crawl progress.
func WithObservers(observers ...Observer) EngineOption {
	return func(e *Engine) {
		for _, o := range observers {
			if o != nil {
				e.observers = append(e.observers, o)
			}
		}
	}
}

// WithEngineLogger sets the logger used for crawl progress and save errors.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine that runs levels through runner and persists
// pages through saver.
func NewEngine(runner Runner, saver Saver, opts ...EngineOption) *Engine {
	e := &Engine{
		runner:   runner,
		saver:    saver,
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Crawl walks the site starting at seed and returns what was saved.
//
// It only fails for an invalid seed or when ctx is cancelled. On
// cancellation the pages fetched so far are still saved and the partial
// summary is returned together with the context error.
func (e *Engine) Crawl(ctx context.Context, seed string) (*model.CrawlSummary, error) {
	seedURL, err := parseSeed(seed)
	if err != nil {
		return nil, err
	}
	filter, err := NewLinkFilter(seedURL.String(), e.ignorePatterns, e.followPatterns)
	if err != nil {
		return nil, err
	}

	summary := model.NewCrawlSummary(seedURL.String(), e.maxDepth)
	if od, ok := e.saver.(interface{ OutputDir() string }); ok {
		summary.OutputDir = od.OutputDir()
	}

	visited := make(map[string]struct{})
	frontier := []string{seedURL.String()}

	for depth := 0; len(frontier) > 0 && depth <= e.maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return e.interrupted(summary, err)
		}

		level := dedupe(frontier, visited)
		if len(level) == 0 {
			break
		}

		e.logger.Info("crawling level", "depth", depth, "pages", len(level))
		for _, o := range e.observers {
			o.LevelStarted(ctx, depth, len(level))
		}

		results := orderByFrontier(level, e.runner.Run(ctx, level))
		cancelled := ctx.Err() != nil

		inLevel := make(map[string]struct{}, len(level))
		for _, u := range level {
			inLevel[VisitKey(u)] = struct{}{}
		}

		stats := model.LevelSummary{Depth: depth, Queued: len(level)}
		staged := make(map[string]struct{})
		next := make([]string, 0)

		for _, result := range results {
			// After cancellation, failures are most likely the cancellation
			// itself. Leave them unvisited so no empty file replaces a good one.
			if cancelled && result.Failed() {
				continue
			}

			key := VisitKey(result.URL)
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}

			record := e.save(ctx, summary, result, depth)
			if !record.SaveFailed {
				stats.Saved++
			}
			if record.Failed {
				stats.Failed++
			}
			summary.Pages = append(summary.Pages, record)
			for _, o := range e.observers {
				o.PageProcessed(ctx, record)
			}

			for _, link := range filter.Resolve(filter.BaseFor(result.URL, result.FinalURL), result.Links) {
				k := VisitKey(link)
				if _, ok := visited[k]; ok {
					continue
				}
				if _, ok := inLevel[k]; ok {
					continue
				}
				if _, ok := staged[k]; ok {
					continue
				}
				staged[k] = struct{}{}
				next = append(next, link)
			}
		}

		summary.Levels = append(summary.Levels, stats)
		for _, o := range e.observers {
			o.LevelFinished(ctx, stats)
		}

		if cancelled {
			return e.interrupted(summary, ctx.Err())
		}
		frontier = next
	}

	summary.FinishedAt = time.Now()
	e.logger.Info("crawl complete",
		"seed", summary.Seed,
		"pages", len(summary.Pages),
		"failed", summary.TotalFailed(),
		"save_errors", summary.SaveErrors,
		"elapsed", summary.Duration(),
	)
	return summary, nil
}

// save persists one result and builds its record. Write failures are logged
// and counted; they never stop the crawl.
func (e *Engine) save(ctx context.Context, summary *model.CrawlSummary, result model.PageResult, depth int) model.PageRecord {
	record := model.NewPageRecord(result, depth)

	// Pages that were fetched before an interrupt are still written.
	path, err := e.saver.Save(context.WithoutCancel(ctx), result)
	if err != nil {
		e.logger.Error("failed to save page", "url", result.URL, "error", err)
		summary.SaveErrors++
		record.SaveFailed = true
		if record.Error == "" {
			record.Error = err.Error()
		} else {
			record.Error += "; " + err.Error()
		}
		return record
	}

	record.Path = path
	e.logger.Debug("saved page", "url", result.URL, "path", path)
	return record
}

func (e *Engine) interrupted(summary *model.CrawlSummary, err error) (*model.CrawlSummary, error) {
	summary.FinishedAt = time.Now()
	summary.Interrupted = true
	e.logger.Warn("crawl interrupted", "pages", len(summary.Pages), "error", err)
	return summary, err
}

// dedupe drops URLs that were already visited or appear earlier in urls.
func dedupe(urls []string, visited map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		k := VisitKey(u)
		if _, ok := visited[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, u)
	}
	return out
}

// orderByFrontier puts results (in completion order) back into the order
// their URLs appear in level. Results for URLs outside level are appended.
func orderByFrontier(level []string, results []model.PageResult) []model.PageResult {
	byURL := make(map[string]model.PageResult, len(results))
	extra := make([]model.PageResult, 0)
	for _, r := range results {
		if _, dup := byURL[r.URL]; dup {
			extra = append(extra, r)
			continue
		}
		byURL[r.URL] = r
	}

	ordered := make([]model.PageResult, 0, len(results))
	for _, u := range level {
		if r, ok := byURL[u]; ok {
			ordered = append(ordered, r)
			delete(byURL, u)
		}
	}
	for _, r := range results {
		if _, ok := byURL[r.URL]; ok {
			ordered = append(ordered, r)
			delete(byURL, r.URL)
		}
	}
	return append(ordered, extra...)
}
