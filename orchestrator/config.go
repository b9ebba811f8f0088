package orchestrator

import (
	"fmt"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/retry"
)

// Batch size bounds applied by OptimizeSyncPerformance.
const (
	MaxTunedBatchSize = 200
	MinTunedBatchSize = 50
)

// Config is the immutable orchestrator configuration. Change it with
// UpdateConfig.
type Config struct {
	Comparison diff.Config     `json:"comparison" yaml:"comparison" mapstructure:"comparison"`
	Conflict   conflict.Config `json:"conflict" yaml:"conflict" mapstructure:"conflict"`
	Retry      retry.Config    `json:"retry" yaml:"retry" mapstructure:"retry"`

	EnableConflictDetection bool `json:"enable_conflict_detection" yaml:"enable_conflict_detection" mapstructure:"enable_conflict_detection"`
	EnableRetryMechanism    bool `json:"enable_retry_mechanism" yaml:"enable_retry_mechanism" mapstructure:"enable_retry_mechanism"`

	// MaxSyncAttempts caps the retries of one job. The underlying sync call
	// runs at most MaxSyncAttempts+1 times.
	MaxSyncAttempts int `json:"max_sync_attempts" yaml:"max_sync_attempts" mapstructure:"max_sync_attempts"`

	BatchSize                int  `json:"batch_size" yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrentJobs        int  `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
	EnableParallelProcessing bool `json:"enable_parallel_processing" yaml:"enable_parallel_processing" mapstructure:"enable_parallel_processing"`

	// SyncNonConflictingChanges also sends the changes of records without
	// conflicts through SyncData when conflicts exist.
	SyncNonConflictingChanges bool `json:"sync_non_conflicting_changes" yaml:"sync_non_conflicting_changes" mapstructure:"sync_non_conflicting_changes"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Comparison:               diff.DefaultConfig(),
		Conflict:                 conflict.DefaultConfig(),
		Retry:                    retry.DefaultConfig(),
		EnableConflictDetection:  true,
		EnableRetryMechanism:     true,
		MaxSyncAttempts:          3,
		BatchSize:                100,
		MaxConcurrentJobs:        4,
		EnableParallelProcessing: false,
	}
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := c.Comparison.Validate(); err != nil {
		return fmt.Errorf("comparison: %w", err)
	}
	if err := c.Conflict.Validate(); err != nil {
		return fmt.Errorf("conflict: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.MaxSyncAttempts < 0 {
		return fmt.Errorf("MaxSyncAttempts must not be negative, got %d", c.MaxSyncAttempts)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BatchSize must be positive, got %d", c.BatchSize)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("MaxConcurrentJobs must be positive, got %d", c.MaxConcurrentJobs)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	if c.Comparison.CompareFields != nil {
		out.Comparison.CompareFields = append([]string(nil), c.Comparison.CompareFields...)
	}
	return out
}
