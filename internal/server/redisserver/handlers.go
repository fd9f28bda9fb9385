package redisserver

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/memkv/internal/storage/memory"
)

// GET <key>
type getCommand struct {
	store *memory.Store
}

func (c *getCommand) Name() string { return "GET" }

func (c *getCommand) Execute(args []string) (any, error) {
	if len(args) != 1 {
		return nil, errArity(c.Name())
	}
	v, ok := c.store.Get(args[0])
	if !ok {
		return nil, nil
	}
	return v, nil
}

// SET <key> <value> [EX seconds | PX milliseconds]
//
// When EX and PX are both given the last one wins.
type setCommand struct {
	store *memory.Store
}

func (c *setCommand) Name() string { return "SET" }

func (c *setCommand) Execute(args []string) (any, error) {
	if len(args) < 2 {
		return nil, errArity(c.Name())
	}
	key, value := args[0], args[1]

	var ttl time.Duration
	for i := 2; i < len(args); i += 2 {
		var unit time.Duration
		switch strings.ToUpper(args[i]) {
		case "EX":
			unit = time.Second
		case "PX":
			unit = time.Millisecond
		default:
			return nil, errSyntax
		}
		if i+1 >= len(args) {
			return nil, errSyntax
		}
		d, err := parseTTL(args[i+1], unit, "set")
		if err != nil {
			return nil, err
		}
		ttl = d
	}

	c.store.Set(key, value, ttl)
	return "OK", nil
}

// TTL <key>
//
// Returns -2 if the key does not exist, -1 if it has no expiration,
// otherwise the remaining whole seconds.
type ttlCommand struct {
	store *memory.Store
}

func (c *ttlCommand) Name() string { return "TTL" }

func (c *ttlCommand) Execute(args []string) (any, error) {
	if len(args) != 1 {
		return nil, errArity(c.Name())
	}
	return c.store.TTL(args[0]), nil
}

// EXPIRE <key> <seconds>
type expireCommand struct {
	store *memory.Store
}

func (c *expireCommand) Name() string { return "EXPIRE" }

func (c *expireCommand) Execute(args []string) (any, error) {
	if len(args) != 2 {
		return nil, errArity(c.Name())
	}
	ttl, err := parseTTL(args[1], time.Second, "expire")
	if err != nil {
		return nil, err
	}
	return c.store.Expire(args[0], ttl), nil
}

// EXISTS <key> [key ...]
type existsCommand struct {
	store *memory.Store
}

func (c *existsCommand) Name() string { return "EXISTS" }

func (c *existsCommand) Execute(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errArity(c.Name())
	}
	n := 0
	for _, key := range args {
		if c.store.Exists(key) {
			n++
		}
	}
	return n, nil
}

// DEL <key> [key ...]
type delCommand struct {
	store *memory.Store
}

func (c *delCommand) Name() string { return "DEL" }

func (c *delCommand) Execute(args []string) (any, error) {
	if len(args) < 1 {
		return nil, errArity(c.Name())
	}
	n := 0
	for _, key := range args {
		if c.store.Delete(key) {
			n++
		}
	}
	return n, nil
}

// KEYS <pattern>
type keysCommand struct {
	store *memory.Store
}

func (c *keysCommand) Name() string { return "KEYS" }

func (c *keysCommand) Execute(args []string) (any, error) {
	if len(args) != 1 {
		return nil, errArity(c.Name())
	}
	return c.store.Keys(args[0]), nil
}

// parseTTL parses a positive decimal amount of unit. Fractions are allowed;
// the result is rounded to the nearest nanosecond and must stay positive.
func parseTTL(s string, unit time.Duration, cmd string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}

	ns := math.Round(f * float64(unit))
	if ns <= 0 || ns >= math.MaxInt64 {
		return 0, errorf("ERR invalid expire time in '%s' command", cmd)
	}
	return time.Duration(ns), nil
}
