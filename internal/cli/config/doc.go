// Package config holds the memkv-cli settings.
//
// Settings come from ~/.memkv/cli.yaml, then MEMKV_CLI_* environment
// variables, then command-line flags.
package config
