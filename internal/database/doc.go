// Package database provides SQLite-based crawl history for sitescraper.
//
// This package implements the CrawlDB, which stores:
//   - One row per crawl run with its final counters
//   - One row per saved page with status, output path and content hash
//
// The content hash lets two runs of the same seed be compared page by page
// without reading the mirrored files.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
//  1. No external dependencies - the database is a single file
//  2. CGO-free implementation allows easy cross-compilation
//  3. WAL mode keeps the history command usable while a crawl is writing
package database
