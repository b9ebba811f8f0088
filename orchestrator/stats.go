package orchestrator

import (
	"time"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/retry"
)

// Statistics are the orchestrator-wide counters. They live as long as the
// Orchestrator and are updated atomically per call.
type Statistics struct {
	TotalOrchestrations int64         `json:"total_orchestrations" yaml:"total_orchestrations"`
	SuccessfulSyncs     int64         `json:"successful_syncs" yaml:"successful_syncs"`
	FailedSyncs         int64         `json:"failed_syncs" yaml:"failed_syncs"`
	TotalProcessingTime time.Duration `json:"total_processing_time" yaml:"total_processing_time"`
	TotalConflicts      int64         `json:"total_conflicts" yaml:"total_conflicts"`
	TotalSynchronized   int64         `json:"total_synchronized" yaml:"total_synchronized"`
	TotalRetries        int64         `json:"total_retries" yaml:"total_retries"`
	LastOrchestration   time.Time     `json:"last_orchestration" yaml:"last_orchestration"`
}

// AverageProcessingTime is the mean duration of an orchestration.
func (s Statistics) AverageProcessingTime() time.Duration {
	if s.TotalOrchestrations == 0 {
		return 0
	}
	return s.TotalProcessingTime / time.Duration(s.TotalOrchestrations)
}

// SuccessRate is the share of successful orchestrations, 0 when none ran.
func (s Statistics) SuccessRate() float64 {
	if s.TotalOrchestrations == 0 {
		return 0
	}
	return float64(s.SuccessfulSyncs) / float64(s.TotalOrchestrations)
}

// AggregatedStatistics rolls up the counters of every component.
type AggregatedStatistics struct {
	Orchestrator Statistics          `json:"orchestrator" yaml:"orchestrator"`
	Comparison   diff.Statistics     `json:"comparison" yaml:"comparison"`
	Conflicts    conflict.Statistics `json:"conflicts" yaml:"conflicts"`
	Retry        retry.Statistics    `json:"retry" yaml:"retry"`
}

// Statistics returns a snapshot of the orchestrator counters.
func (o *Orchestrator) Statistics() Statistics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// AggregatedStatistics returns the counters of the orchestrator and its
// components.
func (o *Orchestrator) AggregatedStatistics() AggregatedStatistics {
	return AggregatedStatistics{
		Orchestrator: o.Statistics(),
		Comparison:   o.comparison.Statistics(),
		Conflicts:    o.conflicts.Statistics(),
		Retry:        o.retry.RetryStatistics(),
	}
}

// ResetAllStatistics zeroes the orchestrator counters and those of every
// component exposing ResetStatistics or ClearStatistics.
func (o *Orchestrator) ResetAllStatistics() {
	o.mu.Lock()
	o.stats = Statistics{}
	o.mu.Unlock()

	for _, c := range []any{o.comparison, o.conflicts, o.retry, o.coordinator} {
		resetStatistics(c)
	}
}

func resetStatistics(c any) {
	switch r := c.(type) {
	case statisticsResetter:
		r.ResetStatistics()
	case statisticsClearer:
		r.ClearStatistics()
	}
}
