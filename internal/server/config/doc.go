// Package config provides server configuration for memkv.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation of loaded values
//
// Configuration is loaded via internal/infra/confloader from a YAML file and
// environment variables.
package config
