// Package logger provides structured logging for memkv.
//
// It wraps log/slog:
//
//   - logger.go: handler construction, runtime level changes, slog default
//   - redact.go: cache payloads are logged by size, never by content
package logger
