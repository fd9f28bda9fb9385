// Package confloader provides configuration loading mechanism.
//
// Sources, highest priority first:
//
//  1. Environment variables with the MEMKV_ prefix
//  2. Unprefixed aliases (REDIS_HOST, REDIS_PORT)
//  3. The YAML configuration file
//  4. Defaults already set on the target struct
//
// Watcher reports edits to the configuration file so the server can apply
// reloadable settings at runtime.
package confloader
