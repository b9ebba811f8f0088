package orchestrator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
)

// RecommendationType names a tuning or reporting recommendation.
type RecommendationType string

const (
	RecommendBatchSizeIncrease      RecommendationType = "BATCH_SIZE_INCREASE"
	RecommendBatchSizeDecrease      RecommendationType = "BATCH_SIZE_DECREASE"
	RecommendParallelProcessing     RecommendationType = "ENABLE_PARALLEL_PROCESSING"
	RecommendEnhancedDetection      RecommendationType = "ENHANCED_CONFLICT_DETECTION"
	RecommendConflictOptimization   RecommendationType = "CONFLICT_OPTIMIZATION"
	RecommendReliabilityImprovement RecommendationType = "RELIABILITY_IMPROVEMENT"
	RecommendErrorInvestigation     RecommendationType = "ERROR_INVESTIGATION"
	RecommendPerformance            RecommendationType = "PERFORMANCE_OPTIMIZATION"
)

// Recommendation is a human readable suggestion attached to a tuning
// result or a report.
type Recommendation struct {
	Type     RecommendationType `json:"type" yaml:"type"`
	Priority Priority           `json:"priority" yaml:"priority"`
	Message  string             `json:"message" yaml:"message"`
}

// PerformanceStats are the rolling figures tuning decisions are based on.
type PerformanceStats struct {
	AverageProcessingTime time.Duration `json:"average_processing_time" yaml:"average_processing_time"`
	ConflictRate          float64       `json:"conflict_rate" yaml:"conflict_rate"`
	SampleSize            int64         `json:"sample_size" yaml:"sample_size"`
}

// Optimization is a proposed configuration with the reasons for it.
type Optimization struct {
	Config          Config           `json:"config" yaml:"config"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
}

const (
	heavyProcessingTime = time.Second
	heavyConflictRate   = 0.3
	batchGrowthFactor   = 1.5
	batchShrinkFactor   = 0.7
)

// OptimizeSyncPerformance proposes a tuned copy of the active configuration.
// Light load grows the batch size and enables parallel processing; heavy
// load shrinks the batch size and switches to enhanced conflict detection.
// The active configuration is not changed.
func (o *Orchestrator) OptimizeSyncPerformance(stats PerformanceStats) Optimization {
	cfg := o.Config()
	opt := Optimization{Config: cfg, Recommendations: []Recommendation{}}

	heavy := stats.AverageProcessingTime >= heavyProcessingTime || stats.ConflictRate >= heavyConflictRate
	if !heavy {
		size := min(int(float64(cfg.BatchSize)*batchGrowthFactor), MaxTunedBatchSize)
		if size != cfg.BatchSize {
			opt.Config.BatchSize = size
			opt.Recommendations = append(opt.Recommendations, batchSizeChange("light", stats, cfg.BatchSize, size))
		}
		if !cfg.EnableParallelProcessing {
			opt.Config.EnableParallelProcessing = true
			opt.Recommendations = append(opt.Recommendations, Recommendation{
				Type:     RecommendParallelProcessing,
				Priority: PriorityMedium,
				Message:  fmt.Sprintf("Parallel batch processing enabled with up to %d concurrent jobs", cfg.MaxConcurrentJobs),
			})
		}
		return opt
	}

	size := max(int(float64(cfg.BatchSize)*batchShrinkFactor), MinTunedBatchSize)
	if size != cfg.BatchSize {
		opt.Config.BatchSize = size
		opt.Recommendations = append(opt.Recommendations, batchSizeChange("heavy", stats, cfg.BatchSize, size))
	}
	if cfg.Conflict.Level != conflict.LevelEnhanced {
		opt.Config.Conflict.Level = conflict.LevelEnhanced
		opt.Recommendations = append(opt.Recommendations, Recommendation{
			Type:     RecommendEnhancedDetection,
			Priority: PriorityHigh,
			Message:  "Conflict detection raised to ENHANCED to catch multi-field conflicts earlier",
		})
	}
	return opt
}

// batchSizeChange describes a batch size move. A size outside the tuning
// bounds is clamped back into them, so light load can lower the size and
// heavy load can raise it.
func batchSizeChange(load string, stats PerformanceStats, from, to int) Recommendation {
	r := Recommendation{
		Type:     RecommendBatchSizeIncrease,
		Priority: PriorityMedium,
	}
	verb := "raised"
	if to < from {
		r.Type = RecommendBatchSizeDecrease
		verb = "lowered"
	}
	if load == "heavy" {
		r.Priority = PriorityHigh
	}
	r.Message = fmt.Sprintf("Load is %s (avg %s, conflict rate %.2f); batch size %s from %d to %d",
		load, stats.AverageProcessingTime, stats.ConflictRate, verb, from, to)
	return r
}

// RollingStatistics derives tuning inputs from the orchestrator counters.
func (o *Orchestrator) RollingStatistics() PerformanceStats {
	s := o.Statistics()
	return PerformanceStats{
		AverageProcessingTime: s.AverageProcessingTime(),
		ConflictRate:          conflictRate(int(s.TotalConflicts), int(s.TotalSynchronized)),
		SampleSize:            s.TotalOrchestrations,
	}
}

// AutoTune applies OptimizeSyncPerformance to the rolling statistics. It
// does nothing until at least one orchestration has run.
func (o *Orchestrator) AutoTune() (Optimization, error) {
	stats := o.RollingStatistics()
	if stats.SampleSize == 0 {
		return Optimization{Config: o.Config(), Recommendations: []Recommendation{}}, nil
	}

	opt := o.OptimizeSyncPerformance(stats)
	if len(opt.Recommendations) == 0 {
		return opt, nil
	}
	if err := o.UpdateConfig(opt.Config); err != nil {
		return opt, err
	}
	o.metrics.RecordBatchSize(opt.Config.BatchSize)

	o.logger.Info("auto-tuning applied",
		slog.Duration("avg_processing_time", stats.AverageProcessingTime),
		slog.Float64("conflict_rate", stats.ConflictRate),
		slog.Int("recommendations", len(opt.Recommendations)),
	)
	return opt, nil
}
