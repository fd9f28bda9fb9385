// Package repl provides interactive mode for memkv-cli.
//
//   - repl.go: main loop, line splitting and builtins
//   - completer.go: command name completion and usage
//   - history.go: command history persistence
//
// Builtins are help, history, exit and quit. Every other line is split
// into arguments and handed to the Executor.
package repl
