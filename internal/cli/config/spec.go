// Package config defines the CLI configuration structure.
package config

import (
	"net"
	"strconv"
	"time"
)

// CLIConfig is the configuration for memkv-cli (~/.memkv/cli.yaml).
type CLIConfig struct {
	// Default connection settings
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`

	// Output format: text, table, json, yaml
	Output string `yaml:"output"`

	// HistoryFile stores REPL history. Empty selects ~/.memkv/history.
	HistoryFile string `yaml:"history_file"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Host:        "127.0.0.1",
		Port:        6379,
		Timeout:     5 * time.Second,
		Output:      "text",
		HistoryFile: DefaultHistoryPath(),
	}
}

// Addr returns the host:port server address.
func (c *CLIConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
