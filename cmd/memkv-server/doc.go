// Package main provides the entry point for memkv-server.
//
// The server provides:
//
//   - a Redis-compatible listener for GET, SET, TTL, EXPIRE, EXISTS, DEL and KEYS
//   - an optional HTTP endpoint serving /metrics and /healthz
//
// Usage:
//
//	memkv-server [flags]
//	memkv-server --config /path/to/memkv.yaml --port 6380
//
// Configuration priority is flags > MEMKV_* variables > REDIS_HOST and
// REDIS_PORT > file > defaults. SIGHUP or an edit of the config file
// reloads log.level; SIGINT and SIGTERM drain connections and exit.
package main
