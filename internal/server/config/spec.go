// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for memkv-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Storage     StorageSection     `koanf:"storage"`
	Replication ReplicationSection `koanf:"replication"`
	Metrics     MetricsSection     `koanf:"metrics"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures the RESP listener.
type ServerSection struct {
	// Addr is the bind host. The port is configured separately so that
	// --port works the way it does for redis-server.
	Addr string `koanf:"addr"`
	Port int    `koanf:"port"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// IdleTimeout closes silent client connections. Zero disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RateLimit is commands per second per client IP. Zero disables it.
	RateLimit int `koanf:"rate_limit"`

	// RequirePass enables AUTH.
	RequirePass string `koanf:"requirepass"`
}

// StorageSection locates the snapshot and tunes expiry.
type StorageSection struct {
	Dir           string        `koanf:"dir"`
	DBFilename    string        `koanf:"dbfilename"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ReplicationSection turns the node into a replica.
type ReplicationSection struct {
	// ReplicaOf is "<host> <port>". Empty means this node is a master.
	ReplicaOf  string `koanf:"replicaof"`
	MasterAuth string `koanf:"masterauth"`

	// ListeningPort is announced to the master. Zero announces server.port.
	ListeningPort int `koanf:"listening_port"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
