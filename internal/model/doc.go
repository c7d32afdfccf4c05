// Package model defines the core data structures shared by the crawl engine,
// the mirror writer, the history database and the report writers.
//
// This package contains the following main types:
//   - PageResult: The outcome of fetching and rendering a single URL
//   - PageRecord: The per-page outcome the engine hands to observers
//   - LevelSummary: Counters for one breadth-first level
//   - CrawlSummary: The result of a whole crawl
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, database, metrics and report packages all need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
