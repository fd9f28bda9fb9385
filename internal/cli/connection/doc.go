// Package connection provides connection management for memkv-cli.
//
//   - client.go: RESP client, reply decoding, server errors
//   - manager.go: current connection of an interactive session
//
// Requests are written as multi-bulk arrays so values may contain spaces
// and line breaks.
package connection
