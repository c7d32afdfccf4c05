// Package config provides configuration structures and utilities for sitescraper.
// It defines the crawl options collected from CLI flags, the per-site YAML
// configuration file, and the XDG locations used for persistent data.
package config
