package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "memkv"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter

	// Connection metrics
	ConnectionsActive prometheus.Gauge

	// Replication metrics
	ReplicasConnected prometheus.Gauge
	ReplicationOffset prometheus.Gauge

	// Storage metrics
	Keys             *prometheus.GaugeVec
	KeysExpired      prometheus.Counter
	SnapshotDuration prometheus.Histogram
	SnapshotBytes    prometheus.Gauge
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		registry: reg,

		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by command and outcome",
		}, []string{"command", "status"}),

		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution latency",
			Buckets:   []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"command"}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Commands rejected by the per-client rate limiter",
		}),

		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open client connections",
		}),

		ReplicasConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "replicas_connected",
			Help:      "Replicas attached to this master",
		}),

		ReplicationOffset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replication",
			Name:      "offset_bytes",
			Help:      "Replication stream bytes sent (master) or processed (replica)",
		}),

		Keys: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keys",
			Help:      "Keys in the keyspace, by type",
		}, []string{"type"}),

		KeysExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_expired_total",
			Help:      "Keys removed by the expiry sweeper",
		}),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Time spent writing snapshots",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),

		SnapshotBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "bytes",
			Help:      "Size of the last snapshot written",
		}),
	}
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordCommand counts one command with its outcome ("ok" or "error").
func (r *Registry) RecordCommand(command, status string, seconds float64) {
	if r == nil {
		return
	}
	r.CommandsTotal.WithLabelValues(command, status).Inc()
	r.CommandDuration.WithLabelValues(command).Observe(seconds)
}

func (r *Registry) IncRateLimited() {
	if r == nil {
		return
	}
	r.RateLimited.Inc()
}

// IncConnections and DecConnections track open client connections.
func (r *Registry) IncConnections() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Inc()
}

func (r *Registry) DecConnections() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Dec()
}

func (r *Registry) SetReplicas(n int) {
	if r == nil {
		return
	}
	r.ReplicasConnected.Set(float64(n))
}

// SetReplicationOffset records the master offset, or the applied offset on a replica.
func (r *Registry) SetReplicationOffset(offset int64) {
	if r == nil {
		return
	}
	r.ReplicationOffset.Set(float64(offset))
}

// SetKeys records the number of keys of one type.
func (r *Registry) SetKeys(keyType string, n int) {
	if r == nil {
		return
	}
	r.Keys.WithLabelValues(keyType).Set(float64(n))
}

func (r *Registry) AddKeysExpired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.KeysExpired.Add(float64(n))
}

// ObserveSnapshot records one snapshot write.
func (r *Registry) ObserveSnapshot(seconds float64, size int64) {
	if r == nil {
		return
	}
	r.SnapshotDuration.Observe(seconds)
	r.SnapshotBytes.Set(float64(size))
}
