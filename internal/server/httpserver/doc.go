// Package httpserver serves the memkv observability endpoints.
//
//   - GET /metrics: Prometheus text exposition
//   - GET /healthz: liveness and build version as JSON
//
// Every route runs behind Recover, RequestID and AccessLog, and behind
// NetworkACL when an allow list is configured.
package httpserver
