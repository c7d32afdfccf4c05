package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The crawl defaults match the flags documented in the CLI help.
const (
	// DefaultMaxDepth fetches the seed page and the pages it links to.
	DefaultMaxDepth = 1

	// DefaultRateLimit disables rate limiting.
	DefaultRateLimit = 0 * time.Second

	// DefaultMaxConcurrency is the number of fetches allowed in flight at once.
	DefaultMaxConcurrency = 4

	// DefaultTimeout bounds a single HTTP request including reading the body.
	DefaultTimeout = 10 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "sitescraper"

	// DefaultUserAgent identifies crawler traffic in server logs.
	DefaultUserAgent = "sitescraper/1.0 (+https://github.com/nao1215/sitescraper)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for documentation pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds all configuration options for a crawl.
// It is populated from CLI flags and the site configuration file and passed
// through the application explicitly rather than kept in global state.
type Config struct {
	// Site is the seed URL. Its host fixes the crawl scope.
	Site string

	// OutputDir is the root directory of the Markdown mirror.
	OutputDir string

	// MaxDepth is the number of link hops followed from the seed.
	// Depth 0 means only the seed page is fetched.
	MaxDepth int

	// RateLimit is the minimum spacing between two requests across all
	// concurrent fetchers. Zero disables rate limiting.
	RateLimit time.Duration

	// MaxConcurrency is the maximum number of fetches in flight.
	MaxConcurrency int

	// Timeout is the per-request timeout. There is no whole-crawl timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the site configuration file.
	// If empty, .sitescraper is searched in the current and home directory.
	ConfigFilePath string

	// SiteConfig holds the merged site configuration for the seed host.
	SiteConfig SiteConfig

	// SummaryFile receives a crawl summary when set. A ".json" extension
	// selects JSON output, anything else Markdown.
	SummaryFile string

	// MetricsFile receives Prometheus text-format metrics when set.
	MetricsFile string

	// DBDir is the directory of the crawl history database.
	DBDir string

	// SaveHistory records the crawl in the history database.
	SaveHistory bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because several defaults are non-zero (timeout, concurrency,
// depth). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxDepth:       DefaultMaxDepth,
		RateLimit:      DefaultRateLimit,
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		DBDir:          XDGDataDir(),
		SaveHistory:    true,
	}
}

// RateLimitFromSeconds converts the --rate_limit flag value (fractional
// seconds) into a duration. Negative input is preserved so Validate can
// reject it.
func RateLimitFromSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// XDGDataDir returns the XDG data directory for sitescraper.
// On Linux: ~/.local/share/sitescraper
// On macOS: ~/Library/Application Support/sitescraper
// On Windows: %LOCALAPPDATA%\sitescraper
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitescraper.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
//
// Design decision: We validate once after flag parsing, before any
// directory is created or request is sent, to fail fast with a clear message.
func (c *Config) Validate() error {
	if c.Site == "" {
		return ErrNoSite
	}
	u, err := url.Parse(c.Site)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSite
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxConcurrency <= 0 {
		return ErrInvalidMaxConcurrency
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// SiteHost returns the host of the seed URL, or "" if it cannot be parsed.
func (c *Config) SiteHost() string {
	u, err := url.Parse(c.Site)
	if err != nil {
		return ""
	}
	return u.Host
}
