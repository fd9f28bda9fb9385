// Package metric provides Prometheus metrics for memkv.
//
//   - prometheus.go: registry of server metrics and its HTTP handler
//   - collector.go: collector exporting storage engine statistics
//
// Metrics are exposed at /metrics in Prometheus text format when the HTTP
// listener is enabled.
package metric
