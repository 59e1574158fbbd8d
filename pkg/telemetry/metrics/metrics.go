// Package metrics exposes Prometheus metrics for the enforcement
// agent: evaluation counts, violation and warning counts, evaluation
// latency, and the cached policy gauge used by health dashboards.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled toggles metric recording. Disabled collectors accept
	// calls and do nothing.
	Enabled bool

	// Namespace and Subsystem prefix every metric name.
	Namespace string
	Subsystem string
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Namespace: "aegis",
		Subsystem: "enforcement",
	}
}

// Collector records enforcement telemetry on a Prometheus registry.
// It implements the agent's Metrics interface.
type Collector struct {
	config Config

	evaluationsTotal   *prometheus.CounterVec
	violationsTotal    *prometheus.CounterVec
	warningsTotal      *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	cachedPolicies     prometheus.Gauge
	reportsDropped     prometheus.Counter
}

// NewCollector creates a collector and registers its metrics with the
// provided registry. If registry is nil a new registry is created;
// retrieve it with Registry-style exposition via promhttp in the
// hosting binary.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultConfig().Namespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = DefaultConfig().Subsystem
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config: cfg,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations by outcome",
			},
			[]string{"outcome"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "violations_total",
				Help:      "Total number of blocking policy violations",
			},
			[]string{"policy_id", "enforcement"},
		),

		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "warnings_total",
				Help:      "Total number of non-blocking policy warnings",
			},
			[]string{"policy_id"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of policy evaluations in seconds",
				// Evaluations run in microseconds to low milliseconds.
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),

		cachedPolicies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cached_policies",
				Help:      "Number of live policies in the local cache",
			},
		),

		reportsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "violation_reports_dropped_total",
				Help:      "Violation reports dropped because the audit buffer was full",
			},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.violationsTotal,
		c.warningsTotal,
		c.evaluationDuration,
		c.cachedPolicies,
		c.reportsDropped,
	)

	return c
}

// RecordEvaluation records one evaluate call with its outcome
// ("pass" or "blocked") and latency.
func (c *Collector) RecordEvaluation(outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.evaluationsTotal.WithLabelValues(outcome).Inc()
	c.evaluationDuration.Observe(duration.Seconds())
}

// RecordViolation records one blocking constraint failure.
func (c *Collector) RecordViolation(policyID, enforcement string) {
	if !c.config.Enabled {
		return
	}
	c.violationsTotal.WithLabelValues(policyID, enforcement).Inc()
}

// RecordWarning records one non-blocking constraint failure.
func (c *Collector) RecordWarning(policyID string) {
	if !c.config.Enabled {
		return
	}
	c.warningsTotal.WithLabelValues(policyID).Inc()
}

// SetCachedPolicies updates the cached policy gauge.
func (c *Collector) SetCachedPolicies(n int) {
	if !c.config.Enabled {
		return
	}
	c.cachedPolicies.Set(float64(n))
}

// RecordReportDropped records a violation report dropped by the async
// audit reporter.
func (c *Collector) RecordReportDropped() {
	if !c.config.Enabled {
		return
	}
	c.reportsDropped.Inc()
}
