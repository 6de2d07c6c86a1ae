// Package middleware provides cross-cutting concerns for the scoring engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rxguard/rxguard/internal/ports"
)

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of pipeline stage
// performance, unit failures, and risk-band population sizes.
type PrometheusMetrics struct {
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics in the global Prometheus registry.
// Create at most one per process; duplicate registration panics.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		executionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scoring_engine_operation_duration_seconds",
				Help:    "Execution time of scoring engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "stage"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoring_engine_events_total",
				Help: "Total number of scoring engine events by kind and subject.",
			},
			[]string{"metric", "subject"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scoring_engine_state",
				Help: "Current scoring engine state values.",
			},
			[]string{"metric", "subject"},
		),
	}
}

// RecordLatency records execution latency in a Prometheus histogram.
// The stage label is taken from labels["stage"] when present.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.executionLatency.WithLabelValues(operation, labelOr(labels, "stage", "")).Observe(duration.Seconds())
}

// RecordCounter increments the event counter for the given metric. The
// subject label is the first of stage, unit, or level found in labels.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	pm.operationCounter.WithLabelValues(metric, subject(labels)).Add(value)
}

// RecordGauge sets the state gauge for the given metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.systemGauges.WithLabelValues(metric, subject(labels)).Set(value)
}

func subject(labels map[string]string) string {
	for _, key := range []string{"stage", "unit", "level"} {
		if v, ok := labels[key]; ok {
			return v
		}
	}
	return ""
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok {
		return v
	}
	return fallback
}
