// Package metrics provides Prometheus instrumentation for goduplex components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values used by the composer metrics.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Registry holds all metric instances for goduplex components.
type Registry struct {
	// Composer Metrics
	ChunksRelayed      *prometheus.CounterVec
	BytesRelayed       *prometheus.CounterVec
	BackpressurePauses *prometheus.CounterVec
	Drains             *prometheus.CounterVec
	Finalized          *prometheus.CounterVec
	Destroyed          *prometheus.CounterVec
	ActiveComposers    *prometheus.GaugeVec
	QueuedBytes        *prometheus.GaugeVec

	// End Metrics
	EndChunks          *prometheus.CounterVec
	EndErrors          *prometheus.CounterVec
	WriterFlushes      *prometheus.CounterVec
	WriterBytesWritten *prometheus.CounterVec
	WriterRetries      *prometheus.CounterVec
	SourceTicks        *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by goduplex components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	config := DefaultConfig()
	config.Registry = reg
	return NewRegistryWithConfig(config)
}

// NewRegistryWithConfig creates a registry using the namespace and constant
// labels from config. It returns nil when config.Enabled is false; every
// instrumented component treats a nil registry as "metrics off".
func NewRegistryWithConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = DefaultNamespace
	}

	factory := promauto.With(config.Registry)
	ns := config.Namespace
	labels := config.Labels

	return &Registry{
		// Composer Metrics
		ChunksRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "chunks_total",
				Help:        "Total number of chunks relayed through composers",
				ConstLabels: labels,
			},
			[]string{"composer", "direction"},
		),

		BytesRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "bytes_total",
				Help:        "Total bytes relayed through composers",
				ConstLabels: labels,
			},
			[]string{"composer", "direction"},
		),

		BackpressurePauses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "backpressure_pauses_total",
				Help:        "Total number of times a readable end was paused for backpressure",
				ConstLabels: labels,
			},
			[]string{"composer"},
		),

		Drains: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "drains_total",
				Help:        "Total number of drain signals that released a pending write",
				ConstLabels: labels,
			},
			[]string{"composer"},
		),

		Finalized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "finalized_total",
				Help:        "Total number of composers finalized cleanly",
				ConstLabels: labels,
			},
			[]string{"composer"},
		),

		Destroyed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "destroyed_total",
				Help:        "Total number of composers destroyed, by error kind",
				ConstLabels: labels,
			},
			[]string{"composer", "kind"},
		),

		ActiveComposers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "active",
				Help:        "Number of composers not yet closed",
				ConstLabels: labels,
			},
			[]string{"composer"},
		),

		QueuedBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "composer",
				Name:        "queued_bytes",
				Help:        "Bytes waiting in the composer inbound queue",
				ConstLabels: labels,
			},
			[]string{"composer"},
		),

		// End Metrics
		EndChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "end",
				Name:        "chunks_total",
				Help:        "Total number of chunks produced or consumed by ends",
				ConstLabels: labels,
			},
			[]string{"end_type", "end_name"},
		),

		EndErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "end",
				Name:        "errors_total",
				Help:        "Total number of ends destroyed with an error",
				ConstLabels: labels,
			},
			[]string{"end_type", "end_name"},
		),

		WriterFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "flushes_total",
				Help:        "Total number of writer flushes",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		WriterBytesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "bytes_written_total",
				Help:        "Total bytes written",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		WriterRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "writer",
				Name:        "retries_total",
				Help:        "Total number of write retries",
				ConstLabels: labels,
			},
			[]string{"writer_name"},
		),

		SourceTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "source",
				Name:        "ticks_total",
				Help:        "Total number of scheduled source ticks",
				ConstLabels: labels,
			},
			[]string{"source_name"},
		),
	}
}
