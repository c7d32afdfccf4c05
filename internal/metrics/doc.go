// Package metrics exposes crawl progress as Prometheus metrics.
//
// A crawl is a short-lived batch job, so nothing is served over HTTP.
// Instead the metrics are written once, in the Prometheus text format, to a
// file that node_exporter's textfile collector can pick up.
package metrics
