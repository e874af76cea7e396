// Package confloader loads the server configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults already present in the target struct
//  2. The YAML configuration file
//  3. MEMKV_* environment variables (MEMKV_SERVER_PORT -> server.port)
//  4. Overrides from command-line flags
//
// Watcher reports edits of the configuration file through fsnotify so that
// settings that can change at runtime (the log level) are reloaded.
package confloader
