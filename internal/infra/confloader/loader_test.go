package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		Addr        string        `koanf:"addr"`
		Port        int           `koanf:"port"`
		ReadTimeout time.Duration `koanf:"read_timeout"`
		RequirePass string        `koanf:"requirepass"`
	} `koanf:"server"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func defaults() testConfig {
	var c testConfig
	c.Server.Addr = "0.0.0.0"
	c.Server.Port = 6379
	c.Server.ReadTimeout = 30 * time.Second
	c.Log.Level = "info"
	return c
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memkv.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/memkv.yaml"))
	if l.envPrefix != "TEST_" || l.FilePath() != "/etc/memkv.yaml" {
		t.Errorf("options not applied: prefix %q, file %q", l.envPrefix, l.FilePath())
	}
}

func TestLoader_Load_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 6380
log:
  level: debug
`)
	cfg := defaults()
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 6380 {
		t.Errorf("Port = %d, want 6380", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Server.Addr != "0.0.0.0" {
		t.Errorf("Addr = %q, default should be kept", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, default should be kept", cfg.Server.ReadTimeout)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_Load_Durations(t *testing.T) {
	path := writeConfig(t, "server:\n  read_timeout: 1500ms\n")
	cfg := defaults()
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ReadTimeout != 1500*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 1.5s", cfg.Server.ReadTimeout)
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: from-file
  port: 7000
  requirepass: file-pass
`)
	t.Setenv("MEMKV_SERVER_PORT", "7001")
	t.Setenv("MEMKV_SERVER_REQUIREPASS", "env-pass")

	cfg := defaults()
	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"server.requirepass": "flag-pass"}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != "from-file" {
		t.Errorf("Addr = %q, want from-file", cfg.Server.Addr)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Port = %d, env should override file", cfg.Server.Port)
	}
	if cfg.Server.RequirePass != "flag-pass" {
		t.Errorf("RequirePass = %q, flags should override env", cfg.Server.RequirePass)
	}
}

func TestLoader_EnvKeysWithUnderscores(t *testing.T) {
	t.Setenv("MEMKV_SERVER_READ_TIMEOUT", "5s")

	cfg := defaults()
	l := NewLoader()
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := l.GetString("server.read_timeout"); got != "5s" {
		t.Errorf("server.read_timeout = %q, want 5s", got)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
}

func TestLoader_EnvKey(t *testing.T) {
	l := NewLoader()
	tests := []struct {
		in   string
		want string
	}{
		{"MEMKV_SERVER_PORT", "server.port"},
		{"MEMKV_STORAGE_SWEEP_INTERVAL", "storage.sweep_interval"},
		{"MEMKV_REPLICATION_REPLICAOF", "replication.replicaof"},
		{"MEMKV_DEBUG", "debug"},
	}
	for _, tt := range tests {
		if got := l.envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoader_LoadFile(t *testing.T) {
	l := NewLoader()
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile("/nonexistent/memkv.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}

	path := writeConfig(t, "log:\n  level: warn\n")
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("log.level"); got != "warn" {
		t.Errorf("log.level = %q, want warn", got)
	}
}

func TestLoader_Load_BadFile(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	cfg := defaults()
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"server.port": 8080, "log.level": "error"}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	if got := l.GetInt("server.port"); got != 8080 {
		t.Errorf("server.port = %d, want 8080", got)
	}
	if len(l.Keys()) != 2 {
		t.Errorf("Keys() = %v", l.Keys())
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\nserver:\n  port: 7000\n")
	l := NewLoader(WithConfigFile(path), WithOverrides(map[string]any{"server.port": 9000}))

	cfg := defaults()
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("log:\n  level: debug\nserver:\n  port: 7001\n"), 0644); err != nil {
		t.Fatal(err)
	}
	reloaded := defaults()
	if err := l.Reload(&reloaded); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reloaded.Log.Level != "debug" {
		t.Errorf("Level = %q after reload, want debug", reloaded.Log.Level)
	}
	if reloaded.Server.Port != 9000 {
		t.Errorf("Port = %d, overrides should survive reload", reloaded.Server.Port)
	}
}

func TestLoader_Reload_KeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n")
	l := NewLoader(WithConfigFile(path))
	cfg := defaults()
	if err := l.Load(&cfg); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("log: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	broken := defaults()
	if err := l.Reload(&broken); err == nil {
		t.Fatal("Reload() should fail on invalid YAML")
	}
	if got := l.GetString("log.level"); got != "warn" {
		t.Errorf("log.level = %q, previous values should be kept", got)
	}
}
