package buildinfo

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}
	if !strings.HasPrefix(info.GoVersion, "go") && !strings.HasPrefix(info.GoVersion, "devel") {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if info.RedisVersion != RedisVersion {
		t.Errorf("RedisVersion = %q, want %q", info.RedisVersion, RedisVersion)
	}
}

func TestString(t *testing.T) {
	expected := Version + " (" + Commit + ") built at " + BuildTime
	if s := String(); s != expected {
		t.Errorf("String() = %q, want %q", s, expected)
	}
}

func TestShort(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	tests := []struct {
		commit string
		want   string
	}{
		{"0123456789abcdef", "01234567"},
		{"abc", "abc"},
		{"unknown", "unknown"},
	}
	for _, tt := range tests {
		Commit = tt.commit
		if got := Short(); got != tt.want {
			t.Errorf("Short() with %q = %q, want %q", tt.commit, got, tt.want)
		}
	}
}
