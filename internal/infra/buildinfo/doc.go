// Package buildinfo exposes the version shown by memkv-server and
// memkv-cli --version.
package buildinfo
