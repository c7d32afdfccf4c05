// Package main provides the entry point for the sitescraper CLI.
//
// sitescraper crawls a website breadth-first, staying on the seed's host,
// and saves every page it reaches as a Markdown file.
//
// Usage:
//
//	sitescraper <site> <output_dir> [flags]
//	sitescraper history [site]
//	sitescraper compare <site>
//
// See --help for all available options.
package main

// main is the entry point for sitescraper.
func main() {
	Execute()
}
