package repl

import (
	"sort"
	"strings"
)

// serverCommands maps each server command to its argument synopsis.
var serverCommands = map[string]string{
	"GET":    "key",
	"SET":    "key value [EX seconds|PX milliseconds]",
	"TTL":    "key",
	"EXPIRE": "key seconds",
	"EXISTS": "key [key ...]",
	"DEL":    "key [key ...]",
	"KEYS":   "pattern",
}

// builtins are handled by the REPL or its executor, not sent to the server.
var builtins = map[string]string{
	"connect": "host:port",
	"help":    "[prefix]",
	"history": "",
	"exit":    "",
	"quit":    "",
}

// Completer provides command completion for the REPL.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the server commands and REPL builtins.
func NewCompleter() *Completer {
	commands := make([]string, 0, len(serverCommands)+len(builtins))
	for name := range serverCommands {
		commands = append(commands, name)
	}
	for name := range builtins {
		commands = append(commands, name)
	}
	sort.Strings(commands)
	return &Completer{commands: commands}
}

// Complete returns the sorted commands starting with prefix, ignoring case.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(strings.ToLower(cmd), strings.ToLower(prefix)) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Usage returns "NAME synopsis" for a known command.
func (c *Completer) Usage(name string) (string, bool) {
	if args, ok := serverCommands[strings.ToUpper(name)]; ok {
		return strings.TrimSpace(strings.ToUpper(name) + " " + args), true
	}
	if args, ok := builtins[strings.ToLower(name)]; ok {
		return strings.TrimSpace(strings.ToLower(name) + " " + args), true
	}
	return "", false
}
