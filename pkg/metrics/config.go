package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every goduplex metric name.
const DefaultNamespace = "goduplex"

// Config controls how a Registry is built.
type Config struct {
	// Enabled false makes NewRegistryWithConfig return nil, which composers
	// and ends read as "no metrics".
	Enabled bool

	// Registry receives the collectors. Nil means prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace replaces "goduplex" as the metric name prefix.
	Namespace string

	// Labels are constant labels attached to every composer and end metric.
	Labels prometheus.Labels
}

// DefaultConfig returns an enabled configuration on the default registerer.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}
