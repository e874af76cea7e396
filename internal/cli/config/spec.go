package config

import "time"

// CLIConfig is the configuration for memkv-cli.
type CLIConfig struct {
	Connection ConnectionSection `koanf:"connection"`
	Output     OutputSection     `koanf:"output"`
	History    HistorySection    `koanf:"history"`
}

// ConnectionSection locates the server.
type ConnectionSection struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout"`
}

// OutputSection selects the reply format.
type OutputSection struct {
	Format string `koanf:"format"`
}

// HistorySection configures the REPL history file. An empty file keeps
// history in memory.
type HistorySection struct {
	File string `koanf:"file"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Connection: ConnectionSection{
			Host:    "127.0.0.1",
			Port:    6379,
			Timeout: 5 * time.Second,
		},
		Output: OutputSection{Format: "pretty"},
	}
}
