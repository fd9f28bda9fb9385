// Package command provides CLI command definitions for memkv-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags, settings and connection state
//   - kv.go: get, set, ttl, expire, exists, del and keys
//   - repl.go: interactive mode, also the default action
//
// Settings come from ~/.memkv/cli.yaml and are overridden by flags.
// Commands parse their arguments, send one request and format the reply.
package command
