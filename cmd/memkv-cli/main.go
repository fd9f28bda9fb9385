// Package main provides the entry point for memkv-cli.
package main

import (
	"os"

	"github.com/yndnr/memkv/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		if !command.Reported(err) {
			command.PrintError("%v", err)
		}
		os.Exit(1)
	}
}
