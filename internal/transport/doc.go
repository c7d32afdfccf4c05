// Package transport builds the HTTP client every fetch goes through.
//
// The client can route all connections through a SOCKS5 proxy, injects the
// per-site cookie and headers from the configuration file into every request
// (redirects included), and keeps cookies set by the site for the duration of
// a crawl.
//
// CheckProxy verifies, before a crawl starts, that a configured proxy address
// actually speaks SOCKS5.
package transport
