// Package command provides CLI command definitions for memkv-cli.
//
// It uses urfave/cli/v2 for command parsing and supports both
// single-command mode and interactive REPL mode.
package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv/internal/cli/config"
	"github.com/yndnr/memkv/internal/cli/connection"
	"github.com/yndnr/memkv/internal/cli/output"
	"github.com/yndnr/memkv/internal/infra/buildinfo"
)

const (
	metaSettings = "settings"
	metaConnMgr  = "connMgr"
)

// App creates the CLI application. Without a subcommand it starts the REPL.
func App() *cli.App {
	app := &cli.App{
		Name:    "memkv-cli",
		Usage:   "memkv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			TTLCommand(),
			ExpireCommand(),
			ExistsCommand(),
			DelCommand(),
			KeysCommand(),
			ReplCommand(),
		},
		Before: setup,
		After:  teardown,
		Action: replAction,
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			EnvVars: []string{"MEMKV_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "memkv server host",
			EnvVars: []string{"MEMKV_HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "memkv server port",
			EnvVars: []string{"MEMKV_PORT"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "dial and request timeout",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, table, json, yaml",
		},
	}
}

// setup loads the config file and applies flag overrides.
func setup(c *cli.Context) error {
	settings, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("host") {
		settings.Host = c.String("host")
	}
	if c.IsSet("port") {
		settings.Port = c.Int("port")
	}
	if c.IsSet("timeout") {
		settings.Timeout = c.Duration("timeout")
	}
	if c.IsSet("output") {
		settings.Output = c.String("output")
	}
	if _, err := output.ParseFormat(settings.Output); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaSettings] = settings
	c.App.Metadata[metaConnMgr] = connection.NewManager(settings.Timeout)
	return nil
}

func teardown(c *cli.Context) error {
	if mgr := GetConnectionManager(c); mgr != nil {
		return mgr.Disconnect()
	}
	return nil
}

// GetSettings retrieves the resolved settings from context.
func GetSettings(c *cli.Context) *config.CLIConfig {
	if s, ok := c.App.Metadata[metaSettings].(*config.CLIConfig); ok {
		return s
	}
	return config.Default()
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// EnsureConnected returns the current client, dialing the configured
// server on first use.
func EnsureConnected(c *cli.Context) (*connection.Client, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, errors.New("connection manager not initialized")
	}
	if client := mgr.Current(); client != nil {
		return client, nil
	}
	return mgr.Connect(GetSettings(c).Addr())
}

// formatter returns the formatter selected by the output setting.
func formatter(c *cli.Context) output.Formatter {
	format, err := output.ParseFormat(GetSettings(c).Output)
	if err != nil {
		format = output.FormatText
	}
	return output.NewFormatter(format)
}

// reportedError wraps an error whose reply was already written to the
// command output.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Reported reports whether err was already shown to the user.
func Reported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
