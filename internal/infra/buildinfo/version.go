package buildinfo

import (
	"runtime"
	"strings"
)

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// RedisVersion is the Redis release whose behaviour memkv follows.
const RedisVersion = "7.2.0"

// Info contains build information.
type Info struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	BuildTime    string `json:"build_time"`
	GoVersion    string `json:"go_version"`
	RedisVersion string `json:"redis_version"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:      Version,
		Commit:       Commit,
		BuildTime:    BuildTime,
		GoVersion:    runtime.Version(),
		RedisVersion: RedisVersion,
	}
}

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built at " + BuildTime
}

// Short returns the commit shortened to eight characters, as shown in INFO.
func Short() string {
	c := strings.TrimSpace(Commit)
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
