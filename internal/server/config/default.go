package config

import (
	"net"
	"strconv"
	"time"

	"github.com/yndnr/memkv-go/internal/storage/snapshot"
)

// Default configuration values.
const (
	DefaultAddr         = "0.0.0.0"
	DefaultPort         = 6379
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	DefaultDir           = "."
	DefaultDBFilename    = snapshot.DefaultDBFilename
	DefaultSweepInterval = 100 * time.Millisecond

	DefaultMetricsAddr = "127.0.0.1:9121"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:         DefaultAddr,
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Storage: StorageSection{
			Dir:           DefaultDir,
			DBFilename:    DefaultDBFilename,
			SweepInterval: DefaultSweepInterval,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// ListenAddress returns "addr:port" for the RESP listener.
func (c *ServerConfig) ListenAddress() string {
	return net.JoinHostPort(c.Server.Addr, strconv.Itoa(c.Server.Port))
}

// AnnouncedPort is the port a replica reports with REPLCONF listening-port.
func (c *ServerConfig) AnnouncedPort() int {
	if c.Replication.ListeningPort != 0 {
		return c.Replication.ListeningPort
	}
	return c.Server.Port
}
