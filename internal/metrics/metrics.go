// Package metrics exposes Prometheus counters for the protocol stack.
//
// Metrics collected (namespace "pso2" by default):
//   - pso2_frames_decoded_total: frames decoded, by client variant
//   - pso2_unknown_packets_total: frames without a table entry, by category id
//   - pso2_frame_trailing_bytes_total: known packets that left unread bytes, by packet
//   - pso2_handshakes_total: completed handshakes, by cipher personality
//   - pso2_cipher_errors_total: decryption failures, by cipher personality
//   - pso2_bytes_total: transport bytes, by direction (read, write)
//   - pso2_active_connections: proxied connections currently open
//   - pso2_captured_frames_total: frames handed to a capture sink
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "pso2").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "pso2",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the protocol metrics.
type Collector struct {
	FramesDecoded     *prometheus.CounterVec
	UnknownPackets    *prometheus.CounterVec
	TrailingBytes     *prometheus.CounterVec
	Handshakes        *prometheus.CounterVec
	CipherErrors      *prometheus.CounterVec
	Bytes             *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	CapturedFrames    prometheus.Counter
}

// New registers a collector.
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		FramesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_decoded_total",
			Help:        "Total number of frames decoded",
			ConstLabels: cfg.ConstLabels,
		}, []string{"variant"}),

		UnknownPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "unknown_packets_total",
			Help:        "Total number of frames with no known packet mapping",
			ConstLabels: cfg.ConstLabels,
		}, []string{"category"}),

		TrailingBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frame_trailing_bytes_total",
			Help:        "Total number of known packets that left unread bytes in their frame",
			ConstLabels: cfg.ConstLabels,
		}, []string{"packet"}),

		Handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "handshakes_total",
			Help:        "Total number of completed key exchanges",
			ConstLabels: cfg.ConstLabels,
		}, []string{"personality"}),

		CipherErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "cipher_errors_total",
			Help:        "Total number of frames that failed to decrypt",
			ConstLabels: cfg.ConstLabels,
		}, []string{"personality"}),

		Bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "bytes_total",
			Help:        "Total number of transport bytes",
			ConstLabels: cfg.ConstLabels,
		}, []string{"direction"}),

		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "active_connections",
			Help:        "Number of proxied connections currently open",
			ConstLabels: cfg.ConstLabels,
		}),

		CapturedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "captured_frames_total",
			Help:        "Total number of frames handed to a capture sink",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

var (
	defaultCollector     *Collector
	defaultCollectorOnce sync.Once
)

// Default returns the process-wide collector registered with prometheus.DefaultRegisterer.
func Default() *Collector {
	defaultCollectorOnce.Do(func() {
		defaultCollector = New()
	})
	return defaultCollector
}
