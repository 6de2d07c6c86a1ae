package middleware

import (
	"time"

	"github.com/rxguard/rxguard/internal/ports"
)

var _ ports.MetricsCollector = NoopMetrics{}

// NoopMetrics is a MetricsCollector that discards every observation.
// Use it in tests and in one-shot CLI runs where no scrape endpoint is
// exposed.
type NoopMetrics struct{}

func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NoopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NoopMetrics) RecordGauge(string, float64, map[string]string)         {}
