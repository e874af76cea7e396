// Package metric provides Prometheus metrics for memkv.
//
// Metrics live in a private registry alongside the Go runtime and process
// collectors and are exposed at /metrics by Server. All Registry methods
// accept a nil receiver, so components can run without metrics.
package metric
