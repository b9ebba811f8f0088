package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
)

const (
	conflictRateThreshold = 0.2
	retryCountThreshold   = 2
	slowProcessingTime    = 5 * time.Second
)

// ReportSummary is the headline of a report.
type ReportSummary struct {
	Results             int              `json:"results" yaml:"results"`
	Success             bool             `json:"success" yaml:"success"`
	Synchronized        int              `json:"synchronized" yaml:"synchronized"`
	Conflicts           int              `json:"conflicts" yaml:"conflicts"`
	ConflictsResolved   int              `json:"conflicts_resolved" yaml:"conflicts_resolved"`
	UnresolvedConflicts int              `json:"unresolved_conflicts" yaml:"unresolved_conflicts"`
	Strategy            Strategy         `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Stage               syncErrors.Stage `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error               string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReportPerformance covers timing.
type ReportPerformance struct {
	ProcessingTime        time.Duration `json:"processing_time" yaml:"processing_time"`
	AverageProcessingTime time.Duration `json:"average_processing_time" yaml:"average_processing_time"`
	RecordsPerSecond      float64       `json:"records_per_second" yaml:"records_per_second"`
}

// ReportReliability covers retries, failures and conflicts.
type ReportReliability struct {
	RetryCount   int     `json:"retry_count" yaml:"retry_count"`
	SuccessRate  float64 `json:"success_rate" yaml:"success_rate"`
	FailedSyncs  int64   `json:"failed_syncs" yaml:"failed_syncs"`
	ConflictRate float64 `json:"conflict_rate" yaml:"conflict_rate"`
}

// SyncReport is a serializable rollup of one or more results plus the
// component statistics. ConflictRate is always within [0,1].
type SyncReport struct {
	GeneratedAt     time.Time            `json:"generated_at" yaml:"generated_at"`
	Summary         ReportSummary        `json:"summary" yaml:"summary"`
	Performance     ReportPerformance    `json:"performance" yaml:"performance"`
	Reliability     ReportReliability    `json:"reliability" yaml:"reliability"`
	Statistics      AggregatedStatistics `json:"statistics" yaml:"statistics"`
	Recommendations []Recommendation     `json:"recommendations" yaml:"recommendations"`
}

// conflictRate is conflicts per synchronized record, 0 when nothing was
// synchronized, clamped to [0,1].
func conflictRate(conflicts, synchronized int) float64 {
	if synchronized <= 0 || conflicts <= 0 {
		return 0
	}
	rate := float64(conflicts) / float64(synchronized)
	if rate > 1 {
		return 1
	}
	return rate
}

// GenerateSyncReport builds a report for a single result.
func (o *Orchestrator) GenerateSyncReport(result *SyncResult, stats AggregatedStatistics) SyncReport {
	if result == nil {
		result = &SyncResult{}
	}

	report := SyncReport{
		GeneratedAt: time.Now(),
		Summary: ReportSummary{
			Results:             1,
			Success:             result.Success,
			Synchronized:        result.Synchronized,
			Conflicts:           result.Conflicts,
			ConflictsResolved:   result.ConflictsResolved,
			UnresolvedConflicts: result.UnresolvedConflicts,
			Strategy:            result.Strategy,
			Stage:               result.Stage,
			Error:               result.Error,
		},
		Performance: ReportPerformance{
			ProcessingTime:        result.ProcessingTime,
			AverageProcessingTime: stats.Orchestrator.AverageProcessingTime(),
			RecordsPerSecond:      throughput(result.Synchronized, result.ProcessingTime),
		},
		Reliability: ReportReliability{
			RetryCount:   result.RetryCount,
			SuccessRate:  stats.Orchestrator.SuccessRate(),
			FailedSyncs:  stats.Orchestrator.FailedSyncs,
			ConflictRate: conflictRate(result.Conflicts, result.Synchronized),
		},
		Statistics: stats,
	}
	report.Recommendations = recommend(report)
	return report
}

// GenerateRollupReport builds one report over many results. The retry
// count reported is the highest of any single result.
func (o *Orchestrator) GenerateRollupReport(results []*SyncResult, stats AggregatedStatistics) SyncReport {
	combined := &SyncResult{Success: len(results) > 0}
	var failures []string
	for _, r := range results {
		if r == nil {
			continue
		}
		combined.Synchronized += r.Synchronized
		combined.Conflicts += r.Conflicts
		combined.ConflictsResolved += r.ConflictsResolved
		combined.UnresolvedConflicts += r.UnresolvedConflicts
		combined.ProcessingTime += r.ProcessingTime
		combined.RetryCount = max(combined.RetryCount, r.RetryCount)
		if !r.Success {
			combined.Success = false
			if combined.Stage == "" {
				combined.Stage = r.Stage
			}
			failures = append(failures, fmt.Sprintf("%s: %s", r.JobID, r.Error))
		}
	}
	combined.Error = strings.Join(failures, "; ")

	report := o.GenerateSyncReport(combined, stats)
	report.Summary.Results = len(results)
	return report
}

func throughput(records int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(records) / d.Seconds()
}

func recommend(r SyncReport) []Recommendation {
	recs := []Recommendation{}
	if r.Reliability.ConflictRate > conflictRateThreshold {
		recs = append(recs, Recommendation{
			Type:     RecommendConflictOptimization,
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("Conflict rate %.2f is above %.2f; consider syncing more often or enabling enhanced detection", r.Reliability.ConflictRate, conflictRateThreshold),
		})
	}
	if r.Reliability.RetryCount > retryCountThreshold {
		recs = append(recs, Recommendation{
			Type:     RecommendReliabilityImprovement,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("Sync needed %d retries; check the coordinator's availability", r.Reliability.RetryCount),
		})
	}
	if !r.Summary.Success {
		recs = append(recs, Recommendation{
			Type:     RecommendErrorInvestigation,
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("Sync failed during %s: %s", r.Summary.Stage, r.Summary.Error),
		})
	}
	if r.Performance.ProcessingTime >= slowProcessingTime {
		recs = append(recs, Recommendation{
			Type:     RecommendPerformance,
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("Processing took %s; consider smaller batches or parallel processing", r.Performance.ProcessingTime),
		})
	}
	return recs
}

// EncodeReport writes report to w as "json" or "yaml".
func EncodeReport(w io.Writer, report SyncReport, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}
