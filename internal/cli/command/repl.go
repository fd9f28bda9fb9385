package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv/internal/cli/connection"
	"github.com/yndnr/memkv/internal/cli/repl"
)

// ReplCommand returns the repl command.
func ReplCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "Start an interactive session",
		Action: replAction,
	}
}

func replAction(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := EnsureConnected(c); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
	}

	r := repl.New(replExecutor(c),
		repl.WithInput(c.App.Reader),
		repl.WithOutput(c.App.Writer),
		repl.WithPrompt(func() string { return prompt(c) }),
		repl.WithHistory(repl.NewHistory(GetSettings(c).HistoryFile)),
	)
	return r.Run(ctx)
}

func prompt(c *cli.Context) string {
	if mgr := GetConnectionManager(c); mgr != nil {
		if client := mgr.Current(); client != nil {
			return client.Addr() + "> "
		}
	}
	return "not connected> "
}

// replExecutor runs REPL lines against the current connection. connect
// switches servers; a dropped connection is redialed once.
func replExecutor(c *cli.Context) repl.Executor {
	return func(_ context.Context, args []string) error {
		if args[0] == "connect" {
			if len(args) != 2 {
				return errors.New("usage: connect host:port")
			}
			if _, err := GetConnectionManager(c).Connect(args[1]); err != nil {
				return err
			}
			return nil
		}

		err := do(c, args...)
		if errors.Is(err, connection.ErrNotConnected) {
			client, cerr := EnsureConnected(c)
			if cerr != nil {
				return cerr
			}
			if cerr := client.Connect(); cerr != nil {
				return cerr
			}
			err = do(c, args...)
		}
		if Reported(err) {
			return nil
		}
		return err
	}
}
