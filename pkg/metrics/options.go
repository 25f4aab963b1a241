package metrics

import (
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultLatencyBuckets covers cache hits through slow history scans. Every
// latency histogram in this package is recorded in milliseconds.
var defaultLatencyBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // bucket layout

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "healthscore" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem overrides the "analytics" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets replaces the millisecond buckets used by every
// histogram. Buckets must be increasing; anything else is ignored.
func WithLatencyBuckets(buckets ...float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 && slices.IsSorted(buckets) {
			m.buckets = slices.Clone(buckets)
		}
	}
}

// WithConstLabels adds labels to every metric, e.g. the deployment or tenant.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(m *Manager) {
		maps.Copy(m.constLabels, labels)
	}
}

// WithPrefix prefixes every metric name after the subsystem.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		m.prefix = prefix
	}
}

// WithRegisterer registers metrics on r instead of the default registerer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registerer = r
		}
	}
}
