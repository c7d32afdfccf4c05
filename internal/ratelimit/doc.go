// Package ratelimit provides the request pacing shared by every concurrent
// fetch of a crawl.
//
// A single Limiter is created per crawl and handed to all workers. Whatever
// the concurrency, two grants are never closer together than the configured
// delay, and the very first grant is immediate.
package ratelimit
