// Package crawler provides the breadth-first crawl engine that mirrors a
// website into Markdown files.
//
// # Architecture
//
// A crawl is driven by the Engine, which walks the site one depth level at a
// time. Each level is handed to a Dispatcher, which runs one Worker task per
// URL with bounded concurrency. Workers share a single rate limiter, fetch
// the page, and render it to Markdown. Once the whole level has come back,
// the Engine saves every page, records it as visited, and builds the next
// level from the links it found.
//
//	Engine -> Dispatcher -> Worker (-> Limiter -> Fetcher -> Renderer)
//	       <- []PageResult
//	       -> Saver, Observers -> next frontier
//
// Design decision: Crawl state (visited set, frontier, depth) lives on the
// stack of Engine.Crawl and is only touched between levels because:
//  1. No lock is needed around the visited set
//  2. Two crawls with the same Engine never share state
//  3. The order in which pages are saved does not depend on network timing
//
// # Components
//
//   - Engine: level-by-level BFS, deduplication, persistence, observers
//   - Dispatcher: bounded fan-out of a batch of URLs
//   - Worker: one rate-limited fetch and render; failures become results
//   - HTTPFetcher: GET with timeout, size limit and content decoding
//   - LinkFilter: resolves hrefs and keeps same-host, allowed paths
//
// # Politeness
//
//   - A single rate limiter spaces request starts across all workers
//   - Concurrency is bounded by the Dispatcher
//   - Only links on the seed host are followed
//   - Ignore and follow path patterns narrow the crawl further
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(client)
//	worker := crawler.NewWorker(fetcher, render.NewHTMLRenderer(), crawler.WithLimiter(limiter))
//	dispatcher := crawler.NewDispatcher(worker.Do, 4)
//	engine := crawler.NewEngine(dispatcher, mirror.NewWriter("out"), crawler.WithMaxDepth(2))
//	summary, err := engine.Crawl(ctx, "https://docs.example.com/")
package crawler
