// Package config provides the memkv-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values and derived addresses
//   - verify.go: validation (port ranges, replicaof format, paths)
//   - sanitize.go: masking of requirepass and masterauth for logs
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// MEMKV_* environment variables and command-line flags.
package config
