package metrics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/sitescraper/internal/model"
)

const namespace = "sitescraper"

// Collector records crawl metrics. It implements crawler.Observer, and its
// InFlight gauge satisfies crawler.InFlightTracker.
//
// Design decision: Each Collector owns a private registry instead of using
// the global default because:
//  1. Tests can create any number of collectors without duplicate
//     registration panics
//  2. The textfile only contains crawl metrics, not Go runtime metrics
type Collector struct {
	registry *prometheus.Registry

	// PagesProcessed counts saved pages by status class.
	PagesProcessed *prometheus.CounterVec

	// FetchDuration observes the wall time of each page fetch.
	FetchDuration prometheus.Histogram

	// LinksFound counts raw hyperlinks extracted from pages.
	LinksFound prometheus.Counter

	// SaveErrors counts pages that could not be written.
	SaveErrors prometheus.Counter

	// LevelsCompleted counts finished BFS levels.
	LevelsCompleted prometheus.Counter

	// CurrentDepth is the depth of the level being crawled.
	CurrentDepth prometheus.Gauge

	// LevelSize is the number of URLs in the level being crawled.
	LevelSize prometheus.Gauge

	// InFlight is the number of fetches currently running.
	InFlight prometheus.Gauge
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		PagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_processed_total",
				Help:      "Total number of pages processed, by response status class.",
			},
			[]string{"status"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time taken to fetch and render a page.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		LinksFound: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_found_total",
				Help:      "Total number of hyperlinks found on fetched pages.",
			},
		),
		SaveErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "save_errors_total",
				Help:      "Total number of pages that could not be written to disk.",
			},
		),
		LevelsCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "levels_completed_total",
				Help:      "Total number of breadth-first levels completed.",
			},
		),
		CurrentDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_depth",
				Help:      "Depth of the level currently being crawled.",
			},
		),
		LevelSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "level_size",
				Help:      "Number of URLs in the level currently being crawled.",
			},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fetches_in_flight",
				Help:      "Number of page fetches currently running.",
			},
		),
	}
}

// Registry returns the registry holding the crawl metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRateLimiter exports the number of grants handed out by a rate
// limiter. grants is read at collection time.
func (c *Collector) ObserveRateLimiter(grants func() int64) error {
	counter := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limiter_grants_total",
			Help:      "Total number of request slots granted by the rate limiter.",
		},
		func() float64 { return float64(grants()) },
	)
	if err := c.registry.Register(counter); err != nil {
		return fmt.Errorf("failed to register rate limiter metric: %w", err)
	}
	return nil
}

// LevelStarted implements crawler.Observer.
func (c *Collector) LevelStarted(_ context.Context, depth, size int) {
	c.CurrentDepth.Set(float64(depth))
	c.LevelSize.Set(float64(size))
}

// PageProcessed implements crawler.Observer.
func (c *Collector) PageProcessed(_ context.Context, record model.PageRecord) {
	c.PagesProcessed.WithLabelValues(statusLabel(record)).Inc()
	c.FetchDuration.Observe(record.Elapsed.Seconds())
	c.LinksFound.Add(float64(record.Links))
	if record.SaveFailed {
		c.SaveErrors.Inc()
	}
}

// LevelFinished implements crawler.Observer.
func (c *Collector) LevelFinished(context.Context, model.LevelSummary) {
	c.LevelsCompleted.Inc()
	c.LevelSize.Set(0)
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is written to a temporary name and renamed, so a scraper never
// reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// statusLabel maps a status code to "2xx", "3xx", "4xx", "5xx", or "error"
// when no response was received.
func statusLabel(record model.PageRecord) string {
	if record.StatusCode == 0 {
		if record.Failed {
			return "error"
		}
		return "2xx"
	}
	return strconv.Itoa(record.StatusCode/100) + "xx"
}
