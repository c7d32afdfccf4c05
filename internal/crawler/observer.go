package crawler

import (
	"context"

	"github.com/nao1215/sitescraper/internal/model"
)

// Observer is notified as the engine makes progress.
// All methods are called from the goroutine running Engine.Crawl, in order,
// so implementations need no locking of their own for a single crawl.
type Observer interface {
	// LevelStarted is called before a level is dispatched.
	LevelStarted(ctx context.Context, depth, size int)

	// PageProcessed is called once per saved page, in frontier order.
	PageProcessed(ctx context.Context, record model.PageRecord)

	// LevelFinished is called after every page of a level has been saved.
	LevelFinished(ctx context.Context, level model.LevelSummary)
}

// NopObserver implements Observer with no-op methods. Embed it to implement
// only the callbacks you need.
type NopObserver struct{}

// LevelStarted implements Observer.
func (NopObserver) LevelStarted(context.Context, int, int) {}

// PageProcessed implements Observer.
func (NopObserver) PageProcessed(context.Context, model.PageRecord) {}

// LevelFinished implements Observer.
func (NopObserver) LevelFinished(context.Context, model.LevelSummary) {}

// Saver persists a page and returns where it was written.
// *mirror.Writer satisfies it.
type Saver interface {
	Save(ctx context.Context, page model.PageResult) (string, error)
}
