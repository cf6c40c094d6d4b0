// Package prometheus renders engine counters and histograms in Prometheus
// text exposition format. [NewExporter] wraps an engine; mount [Exporter.Handler]
// wherever the scrape endpoint should live. Counter names are authd_*_total
// and the single histogram is authd_verify_latency_seconds.
//
// Nothing is registered globally and the exporter never mutates engine
// state; it only reads snapshots.
package prometheus
