package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Addr() != "127.0.0.1:6379" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !strings.HasSuffix(path, filepath.Join(".memkv", "cli.yaml")) {
		t.Errorf("DefaultConfigPath() = %q", path)
	}
}

func TestLoad_Sources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	yaml := "connection:\n  host: db.local\n  port: 7000\n  timeout: 2s\noutput:\n  format: raw\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEMKV_CLI_OUTPUT_FORMAT", "json")

	cfg, err := Load(path, map[string]any{"connection.port": 7001})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Connection.Host != "db.local" || cfg.Connection.Timeout != 2*time.Second {
		t.Errorf("file values not applied: %+v", cfg.Connection)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("format = %q, want env value json", cfg.Output.Format)
	}
	if cfg.Connection.Port != 7001 {
		t.Errorf("port = %d, want override 7001", cfg.Connection.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml"), nil); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Connection.Port != 6379 {
		t.Errorf("port = %d, want default", cfg.Connection.Port)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*CLIConfig)
	}{
		{"empty host", func(c *CLIConfig) { c.Connection.Host = "" }},
		{"port zero", func(c *CLIConfig) { c.Connection.Port = 0 }},
		{"port too big", func(c *CLIConfig) { c.Connection.Port = 70000 }},
		{"negative timeout", func(c *CLIConfig) { c.Connection.Timeout = -time.Second }},
		{"unknown format", func(c *CLIConfig) { c.Output.Format = "table" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := Verify(cfg); err == nil {
				t.Error("Verify() should fail")
			}
		})
	}
}
