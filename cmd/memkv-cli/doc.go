// Package main provides the entry point for memkv-cli.
//
// memkv-cli sends single commands to a memkv server or, without a
// subcommand, starts an interactive session.
//
// Usage:
//
//	memkv-cli [--host HOST] [--port PORT] [--output FORMAT] COMMAND [ARGS...]
//	memkv-cli set --ex 60 session:1 payload
//	memkv-cli keys 'session:*'
//	memkv-cli
package main
