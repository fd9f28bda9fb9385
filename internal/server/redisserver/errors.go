package redisserver

import (
	"fmt"
	"strings"
)

// CommandError is a validation failure reported to the client verbatim.
type CommandError struct {
	Msg string
}

func (e *CommandError) Error() string {
	return e.Msg
}

func errorf(format string, args ...any) *CommandError {
	return &CommandError{Msg: fmt.Sprintf(format, args...)}
}

func errArity(name string) *CommandError {
	return errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

var (
	errSyntax      = &CommandError{Msg: "ERR syntax error"}
	errNotNumber   = &CommandError{Msg: "ERR value is not an integer or out of range"}
	errRateLimited = &CommandError{Msg: "ERR rate limit exceeded"}
)

// HandlerFault is a panic recovered from a command handler.
type HandlerFault struct {
	Command string
	Value   any
}

func (e *HandlerFault) Error() string {
	return fmt.Sprintf("ERR %v", e.Value)
}
