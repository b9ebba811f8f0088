package orchestrator

import "time"

// MetricsCollector provides hooks for observability.
type MetricsCollector interface {
	// RecordSyncDuration records how long an orchestration took
	RecordSyncDuration(strategy string, d time.Duration)

	// RecordSyncResult records the outcome of an orchestration
	RecordSyncResult(success bool, stage string)

	// RecordSynchronized records how many records the coordinator applied
	RecordSynchronized(count int)

	// RecordConflicts records detected conflicts by aggregate severity
	RecordConflicts(count int, severity string)

	// RecordRetry records one retry attempt and whether it succeeded
	RecordRetry(success bool)

	// RecordBatchSize records the batch size in effect after tuning
	RecordBatchSize(size int)
}

// NoOpMetricsCollector is a stub implementation that discards metrics.
type NoOpMetricsCollector struct{}

func (*NoOpMetricsCollector) RecordSyncDuration(strategy string, d time.Duration) {}
func (*NoOpMetricsCollector) RecordSyncResult(success bool, stage string)         {}
func (*NoOpMetricsCollector) RecordSynchronized(count int)                        {}
func (*NoOpMetricsCollector) RecordConflicts(count int, severity string)          {}
func (*NoOpMetricsCollector) RecordRetry(success bool)                            {}
func (*NoOpMetricsCollector) RecordBatchSize(size int)                            {}
