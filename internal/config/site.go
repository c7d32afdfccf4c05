package config

import "time"

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing crawl behavior per documentation site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the default max crawl depth for this site.
	// If zero, the CLI value is used.
	Depth int `yaml:"depth,omitempty"`

	// RateLimit overrides the request spacing in seconds for this site.
	RateLimit float64 `yaml:"rateLimit,omitempty"`

	// MaxConcurrency overrides the concurrency ceiling for this site.
	MaxConcurrency int `yaml:"maxConcurrency,omitempty"`

	// UserAgent overrides the User-Agent header for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// RateLimitDuration returns RateLimit as a duration.
func (sc SiteConfig) RateLimitDuration() time.Duration {
	return RateLimitFromSeconds(sc.RateLimit)
}

// File represents the structure of the .sitescraper configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are bare hosts (e.g., "docs.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific host.
// It merges the site-specific configuration over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	// Copy the header map so merging never mutates the defaults.
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Depth != 0 {
		result.Depth = siteConfig.Depth
	}
	if siteConfig.RateLimit != 0 {
		result.RateLimit = siteConfig.RateLimit
	}
	if siteConfig.MaxConcurrency != 0 {
		result.MaxConcurrency = siteConfig.MaxConcurrency
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}
