package orchestrator

import (
	"time"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
)

// Strategy is the reconciliation mode chosen for a run.
type Strategy string

const (
	StrategyStandard Strategy = "STANDARD_SYNC"
	StrategyBatch    Strategy = "BATCH_SYNC"
)

// Priority ranks strategy decisions and recommendations.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

const (
	// batchChangeThreshold is the change count above which the batch
	// strategy is chosen.
	batchChangeThreshold = 30

	batchCostPerChange    = 100 * time.Millisecond
	standardCostPerChange = 50 * time.Millisecond
)

// StrategyDecision describes how a run will be reconciled.
type StrategyDecision struct {
	Strategy      Strategy      `json:"strategy" yaml:"strategy"`
	Priority      Priority      `json:"priority" yaml:"priority"`
	EstimatedTime time.Duration `json:"estimated_time" yaml:"estimated_time"`
	TotalChanges  int           `json:"total_changes" yaml:"total_changes"`
	BatchSize     int           `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Reason        string        `json:"reason" yaml:"reason"`
}

// ExecuteIntelligentSync picks the batch strategy for large or conflicted
// change sets and the standard strategy otherwise.
func (o *Orchestrator) ExecuteIntelligentSync(differences diff.Result, conflicts conflict.Result) StrategyDecision {
	total := differences.Summary.TotalChanges

	switch {
	case conflicts.HasConflicts:
		return StrategyDecision{
			Strategy:      StrategyBatch,
			Priority:      PriorityHigh,
			EstimatedTime: time.Duration(total) * batchCostPerChange,
			TotalChanges:  total,
			BatchSize:     o.Config().BatchSize,
			Reason:        "conflicts detected",
		}
	case total > batchChangeThreshold:
		return StrategyDecision{
			Strategy:      StrategyBatch,
			Priority:      PriorityHigh,
			EstimatedTime: time.Duration(total) * batchCostPerChange,
			TotalChanges:  total,
			BatchSize:     o.Config().BatchSize,
			Reason:        "large change set",
		}
	default:
		return StrategyDecision{
			Strategy:      StrategyStandard,
			Priority:      PriorityNormal,
			EstimatedTime: time.Duration(total) * standardCostPerChange,
			TotalChanges:  total,
			Reason:        "small change set",
		}
	}
}
