// Package buildinfo exposes build-time version information.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/memkv-go/internal/infra/buildinfo.Version=v1.0.0"
//
// RedisVersion is the protocol compatibility level reported to clients by
// INFO and written into snapshot headers; it is not the build version.
package buildinfo
