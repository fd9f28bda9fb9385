package redisserver

import (
	"sort"
	"strings"

	"github.com/yndnr/memkv/internal/storage/memory"
)

// Command is a named request handler.
//
// Execute receives the arguments after the command name and returns a
// value for Encode, or an error for WriteError.
type Command interface {
	Name() string
	Execute(args []string) (any, error)
}

// Registry maps upper-cased command names to handlers.
type Registry struct {
	cmds map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]Command)}
}

// NewDefaultRegistry registers GET, SET, TTL, EXPIRE, EXISTS, DEL and KEYS
// against store.
func NewDefaultRegistry(store *memory.Store) *Registry {
	r := NewRegistry()
	r.Register(&getCommand{store: store})
	r.Register(&setCommand{store: store})
	r.Register(&ttlCommand{store: store})
	r.Register(&expireCommand{store: store})
	r.Register(&existsCommand{store: store})
	r.Register(&delCommand{store: store})
	r.Register(&keysCommand{store: store})
	return r
}

// Register adds cmd, replacing any handler with the same name.
func (r *Registry) Register(cmd Command) {
	r.cmds[strings.ToUpper(cmd.Name())] = cmd
}

// Dispatcher routes commands to the handlers of a Registry.
// It is safe for concurrent use.
type Dispatcher struct {
	cmds map[string]Command
}

// NewDispatcher snapshots reg. Later registrations are not visible.
func NewDispatcher(reg *Registry) *Dispatcher {
	cmds := make(map[string]Command, len(reg.cmds))
	for name, cmd := range reg.cmds {
		cmds[name] = cmd
	}
	return &Dispatcher{cmds: cmds}
}

// Dispatch runs the named command. Unknown names return a CommandError and
// handler panics are returned as a HandlerFault.
func (d *Dispatcher) Dispatch(name string, args []string) (result any, err error) {
	upper := strings.ToUpper(name)
	cmd, ok := d.cmds[upper]
	if !ok {
		return nil, errorf("ERR unknown command '%s'", upper)
	}

	defer func() {
		if v := recover(); v != nil {
			result, err = nil, &HandlerFault{Command: upper, Value: v}
		}
	}()
	return cmd.Execute(args)
}

// Known reports whether name is registered, ignoring case.
func (d *Dispatcher) Known(name string) bool {
	_, ok := d.cmds[strings.ToUpper(name)]
	return ok
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.cmds))
	for name := range d.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
