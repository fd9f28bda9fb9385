// Package config provides CLI configuration for memkv.
//
//   - spec.go: CLIConfig struct (~/.memkv/cli.yaml)
//   - loader.go: YAML loading and saving
//
// Command-line flags override values from the file.
package config
