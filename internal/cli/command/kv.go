package command

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv/internal/cli/connection"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the value of a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return usageError(c)
			}
			return do(c, "GET", c.Args().First())
		},
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a key, optionally with an expiration",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "ex",
				Usage: "Expire after this many seconds",
			},
			&cli.Int64Flag{
				Name:  "px",
				Usage: "Expire after this many milliseconds",
			},
		},
		Action: setAction,
	}
}

func setAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return usageError(c)
	}
	if c.IsSet("ex") && c.IsSet("px") {
		return errors.New("--ex and --px are mutually exclusive")
	}

	args := []string{"SET", c.Args().Get(0), c.Args().Get(1)}
	switch {
	case c.IsSet("ex"):
		args = append(args, "EX", strconv.FormatInt(c.Int64("ex"), 10))
	case c.IsSet("px"):
		args = append(args, "PX", strconv.FormatInt(c.Int64("px"), 10))
	}
	return do(c, args...)
}

// TTLCommand returns the ttl command.
func TTLCommand() *cli.Command {
	return &cli.Command{
		Name:      "ttl",
		Usage:     "Remaining time to live in seconds (-1 no expiry, -2 missing)",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return usageError(c)
			}
			return do(c, "TTL", c.Args().First())
		},
	}
}

// ExpireCommand returns the expire command.
func ExpireCommand() *cli.Command {
	return &cli.Command{
		Name:      "expire",
		Usage:     "Set a key's time to live in seconds",
		ArgsUsage: "KEY SECONDS",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return usageError(c)
			}
			return do(c, "EXPIRE", c.Args().Get(0), c.Args().Get(1))
		},
	}
}

// ExistsCommand returns the exists command.
func ExistsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "Count how many of the given keys exist",
		ArgsUsage: "KEY [KEY...]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return usageError(c)
			}
			return do(c, append([]string{"EXISTS"}, c.Args().Slice()...)...)
		},
	}
}

// DelCommand returns the del command.
func DelCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Aliases:   []string{"delete"},
		Usage:     "Delete keys and print how many were removed",
		ArgsUsage: "KEY [KEY...]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return usageError(c)
			}
			return do(c, append([]string{"DEL"}, c.Args().Slice()...)...)
		},
	}
}

// KeysCommand returns the keys command.
func KeysCommand() *cli.Command {
	return &cli.Command{
		Name:      "keys",
		Usage:     "List keys matching a glob pattern (default *)",
		ArgsUsage: "[PATTERN]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() > 1 {
				return usageError(c)
			}
			pattern := "*"
			if c.Args().Present() {
				pattern = c.Args().First()
			}
			return do(c, "KEYS", pattern)
		},
	}
}

// do sends one command and writes its reply. Server error replies are
// written like any other reply and returned as reported errors.
func do(c *cli.Context, args ...string) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	reply, err := client.Do(args...)
	var se *connection.ServerError
	if err != nil && !errors.As(err, &se) {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	if ferr := formatter(c).Format(c.App.Writer, reply); ferr != nil {
		return ferr
	}
	if se != nil {
		return &reportedError{err: se}
	}
	return nil
}

func usageError(c *cli.Context) error {
	return fmt.Errorf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage)
}
