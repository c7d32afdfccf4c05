package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and allow callers to use
// errors.Is() for programmatic handling while still giving readable messages.
var (
	// ErrNoSite is returned when no seed URL was given.
	ErrNoSite = errors.New("no site specified: provide the seed URL as the first argument")

	// ErrInvalidSite is returned when the seed URL cannot be parsed or is not http(s).
	ErrInvalidSite = errors.New("invalid site: must be an absolute http or https URL")

	// ErrNoOutputDir is returned when the destination directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidMaxDepth is returned when the max depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxConcurrency is returned when the concurrency ceiling is not positive.
	// Zero would mean no page could ever be fetched.
	ErrInvalidMaxConcurrency = errors.New("invalid max concurrency: must be positive")

	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
