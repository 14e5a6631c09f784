package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager. The service registry is built with the
// defaults; tests build their own Manager on a private registry.
type Option func(*Manager)

// WithNamespace replaces the "vauva" prefix of every series.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces "hearts" in the heart and store series, e.g.
// vauva_hearts_save_batches_total. Session, HTTP and system series keep
// their own subsystems.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets the buckets of every histogram: store latency,
// HTTP duration and GC pause, all in milliseconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithPrometheusRegistry registers the collectors on registry instead of
// the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
