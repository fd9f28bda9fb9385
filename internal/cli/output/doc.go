// Package output provides reply formatting for memkv-cli.
//
//   - formatter.go: Formatter interface, factory and the redis-cli style text format
//   - table.go: aligned table rendering
//   - json.go: JSON output
//   - yaml.go: YAML output
//
// Structured formats map error replies to {"error": "..."} and nil replies
// to null.
package output
