package telemetry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics collects Prometheus metrics for a fact collection run on a
// private registry. All record methods are safe to call on a disabled (or
// nil) instance.
type Metrics struct {
	config MetricsConfig

	// Resolution metrics
	resolutionsExecuted *prometheus.CounterVec
	factsResolved       prometheus.Counter
	factsAbsent         prometheus.Counter
	cacheHits           prometheus.Counter
	overrides           prometheus.Counter

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resolutionsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_executed_total",
				Help:      "Total number of resolution producers invoked",
			},
			[]string{"resolver"},
		),
		factsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "facts_resolved_total",
				Help:      "Total number of facts that resolved to a value",
			},
		),
		factsAbsent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "facts_absent_total",
				Help:      "Total number of facts that ended absent",
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of lookups served from the fact cache",
			},
		),
		overrides: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "environment_overrides_total",
				Help:      "Total number of lookups short-circuited by an environment override",
			},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of contained resolution failures by class",
			},
			[]string{"class"},
		),
	}

	collectors := []prometheus.Collector{
		m.resolutionsExecuted,
		m.factsResolved,
		m.factsAbsent,
		m.cacheHits,
		m.overrides,
		m.errorsByClass,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// enabled reports whether this instance records anything.
func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordResolutionExecuted counts a producer invocation for a resolver.
func (m *Metrics) RecordResolutionExecuted(resolver string) {
	if m.enabled() {
		m.resolutionsExecuted.WithLabelValues(resolver).Inc()
	}
}

// RecordFactResolved counts a fact that resolved to a value.
func (m *Metrics) RecordFactResolved() {
	if m.enabled() {
		m.factsResolved.Inc()
	}
}

// RecordFactAbsent counts a fact that ended absent.
func (m *Metrics) RecordFactAbsent() {
	if m.enabled() {
		m.factsAbsent.Inc()
	}
}

// RecordCacheHit counts a lookup served from the cache.
func (m *Metrics) RecordCacheHit() {
	if m.enabled() {
		m.cacheHits.Inc()
	}
}

// RecordOverride counts a lookup short-circuited by an environment override.
func (m *Metrics) RecordOverride() {
	if m.enabled() {
		m.overrides.Inc()
	}
}

// RecordError counts a contained failure by its error class.
func (m *Metrics) RecordError(class string) {
	if m.enabled() {
		m.errorsByClass.WithLabelValues(class).Inc()
	}
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Summary gathers the registry and renders a sorted "name{labels} value"
// listing for the CLI's --stats output.
func (m *Metrics) Summary() (string, error) {
	if !m.enabled() {
		return "", nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			lines = append(lines, formatMetric(fam, metric))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

// formatMetric renders a single sample in prometheus text-ish form.
func formatMetric(fam *dto.MetricFamily, metric *dto.Metric) string {
	var sb strings.Builder
	sb.WriteString(fam.GetName())

	if labels := metric.GetLabel(); len(labels) > 0 {
		sb.WriteByte('{')
		for i, lp := range labels {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%s=%q", lp.GetName(), lp.GetValue())
		}
		sb.WriteByte('}')
	}

	switch {
	case metric.Counter != nil:
		fmt.Fprintf(&sb, " %g", metric.Counter.GetValue())
	case metric.Gauge != nil:
		fmt.Fprintf(&sb, " %g", metric.Gauge.GetValue())
	}
	return sb.String()
}
