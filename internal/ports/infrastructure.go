package ports

import (
	"context"
	"time"

	"github.com/rxguard/rxguard/internal/domain"
)

// ClaimLoader materializes the raw claim dataset for one scoring run.
// Implementations read from a SQL warehouse, a file, or a fixture; the
// pipeline consumes only this contract. A load failure is absorbed at
// the load stage boundary as an empty dataset.
type ClaimLoader interface {
	// Load returns the claim snapshot for this run. The returned slice is
	// owned by the pipeline; the loader must not retain or mutate it.
	Load(ctx context.Context) ([]domain.Claim, error)
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations should integrate with observability platforms
// like Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like unit failures.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like risk-band population sizes.
	RecordGauge(metric string, value float64, labels map[string]string)
}
