package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yndnr/memkv-go/internal/cli/output"
	"github.com/yndnr/memkv-go/internal/infra/confloader"
)

// EnvPrefix is the prefix of CLI environment variables.
const EnvPrefix = "MEMKV_CLI_"

// DefaultConfigPath returns ~/.memkv/cli.yaml.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".memkv", "cli.yaml")
}

// Load builds the configuration. An explicit path must exist; the default
// path is skipped when absent. overrides use dotted keys such as
// "connection.port".
func Load(path string, overrides map[string]any) (*CLIConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: %w", err)
		}
		path = ""
	}

	opts := []confloader.Option{
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithOverrides(overrides),
	}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify checks the configuration.
func Verify(cfg *CLIConfig) error {
	if cfg.Connection.Host == "" {
		return errors.New("config: connection.host is required")
	}
	if cfg.Connection.Port < 1 || cfg.Connection.Port > 65535 {
		return fmt.Errorf("config: connection.port %d out of range", cfg.Connection.Port)
	}
	if cfg.Connection.Timeout < 0 {
		return errors.New("config: connection.timeout must not be negative")
	}
	if _, err := output.ParseFormat(cfg.Output.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr returns "host:port".
func (c *CLIConfig) Addr() string {
	return net.JoinHostPort(c.Connection.Host, strconv.Itoa(c.Connection.Port))
}
