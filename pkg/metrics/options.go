package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace replaces the "court" namespace. Empty keeps the default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem inserts a subsystem between the namespace and metric name.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithPrefix prepends prefix to every metric name after the subsystem.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.metricPrefix = prefix
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the request and
// stage histograms that do not define their own.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = append([]float64(nil), buckets...)
		}
	}
}

// WithConstLabels attaches labels such as deployment or region to every
// collector.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.customLabels[k] = v
		}
	}
}

// WithPrometheusRegistry registers collectors on reg instead of the default
// registerer.
func WithPrometheusRegistry(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}
