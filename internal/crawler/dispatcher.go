package crawler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitescraper/internal/model"
)

// DefaultMaxConcurrency is used when a non-positive concurrency is given.
const DefaultMaxConcurrency = 4

// Task turns one URL into one PageResult. Worker.Do is a Task.
type Task func(ctx context.Context, url string) model.PageResult

// InFlightTracker observes how many tasks are running.
// A prometheus.Gauge satisfies it.
type InFlightTracker interface {
	Inc()
	Dec()
}

// Dispatcher runs a batch of URLs with at most maxConcurrency tasks in flight.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool because:
//  1. Group.Go blocks while the limit is reached, which is exactly "launch the
//     next task once any running one completes"
//  2. Each URL gets its own goroutine and no queue has to be drained on exit
//  3. Group.Wait collects the tail of the batch
type Dispatcher struct {
	task           Task
	maxConcurrency int
	tracker        InFlightTracker
	logger         *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithInFlightTracker reports the number of running tasks to tracker.
func WithInFlightTracker(tracker InFlightTracker) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracker = tracker
	}
}

// WithDispatcherLogger sets the logger batch progress is reported to.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a Dispatcher running task with the given bound.
func NewDispatcher(task Task, maxConcurrency int, opts ...DispatcherOption) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	d := &Dispatcher{
		task:           task,
		maxConcurrency: maxConcurrency,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxConcurrency returns the in-flight bound.
func (d *Dispatcher) MaxConcurrency() int {
	return d.maxConcurrency
}

// Run executes the task for every URL and returns the results in completion
// order. Every input URL yields exactly one result, also after ctx is
// cancelled: the task is still invoked and is expected to fail fast.
func (d *Dispatcher) Run(ctx context.Context, urls []string) []model.PageResult {
	if len(urls) == 0 {
		return make([]model.PageResult, 0)
	}

	startTime := time.Now()
	completed := make(chan model.PageResult, len(urls))

	// A plain Group, not WithContext: tasks never fail the batch.
	var g errgroup.Group
	g.SetLimit(d.maxConcurrency)

	for _, u := range urls {
		g.Go(func() error {
			if d.tracker != nil {
				d.tracker.Inc()
				defer d.tracker.Dec()
			}
			completed <- d.task(ctx, u)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // tasks always return nil
	close(completed)

	results := make([]model.PageResult, 0, len(urls))
	for r := range completed {
		results = append(results, r)
	}

	d.logger.Debug("batch complete",
		"urls", len(urls),
		"concurrency", d.maxConcurrency,
		"elapsed", time.Since(startTime),
	)
	return results
}
