package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/memkv-go/internal/replication"
	"github.com/yndnr/memkv-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyReplication(&cfg.Replication); err != nil {
		return err
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Port)
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if cfg.DBFilename == "" || strings.ContainsRune(cfg.DBFilename, filepath.Separator) {
		return fmt.Errorf("storage.dbfilename %q must be a plain file name", cfg.DBFilename)
	}
	if cfg.SweepInterval < 0 {
		return errors.New("storage.sweep_interval must not be negative")
	}

	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	return nil
}

func verifyReplication(cfg *ReplicationSection) error {
	if cfg.ReplicaOf != "" {
		if _, err := replication.ParseReplicaOf(cfg.ReplicaOf); err != nil {
			return err
		}
	}
	if cfg.ListeningPort < 0 || cfg.ListeningPort > 65535 {
		return fmt.Errorf("replication.listening_port %d out of range", cfg.ListeningPort)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return err
	}
	switch cfg.Format {
	case "", "json", "text":
		return nil
	}
	return fmt.Errorf("log.format %q must be json or text", cfg.Format)
}
