package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitescraper/internal/model"
)

// Recorder writes a crawl into the history database as it runs.
// It implements crawler.Observer.
//
// Recording is best effort: a failed insert is logged and remembered but
// never stops the crawl. Err returns the first failure.
type Recorder struct {
	db     *CrawlDB
	runID  int64
	logger *slog.Logger
	err    error
}

// NewRecorder starts a new run for seed and returns a Recorder for it.
func NewRecorder(ctx context.Context, db *CrawlDB, seed, outputDir string, maxDepth int, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runID, err := db.StartRun(ctx, seed, outputDir, maxDepth, time.Now())
	if err != nil {
		return nil, err
	}
	logger.Debug("recording crawl history", "run", runID, "db", db.Path())
	return &Recorder{db: db, runID: runID, logger: logger}, nil
}

// RunID returns the ID of the run being recorded.
func (r *Recorder) RunID() int64 {
	return r.runID
}

// Err returns the first error that occurred while recording.
func (r *Recorder) Err() error {
	return r.err
}

// LevelStarted implements crawler.Observer.
func (r *Recorder) LevelStarted(context.Context, int, int) {}

// PageProcessed implements crawler.Observer.
func (r *Recorder) PageProcessed(ctx context.Context, record model.PageRecord) {
	// Pages saved after an interrupt are recorded too.
	if err := r.db.InsertPage(context.WithoutCancel(ctx), r.runID, record); err != nil {
		r.fail(err)
	}
}

// LevelFinished implements crawler.Observer.
func (r *Recorder) LevelFinished(context.Context, model.LevelSummary) {}

// Finish stores the final counters of the run.
func (r *Recorder) Finish(ctx context.Context, summary *model.CrawlSummary) error {
	if err := r.db.FinishRun(context.WithoutCancel(ctx), r.runID, summary); err != nil {
		r.fail(err)
		return err
	}
	return nil
}

func (r *Recorder) fail(err error) {
	r.logger.Warn("failed to record crawl history", "run", r.runID, "error", err)
	if r.err == nil {
		r.err = err
	}
}
