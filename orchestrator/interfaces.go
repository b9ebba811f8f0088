package orchestrator

import (
	"context"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/record"
	"github.com/c0deZ3R0/go-sync-engine/retry"
)

// ChangeType is the kind of mutation a Change asks the coordinator to apply.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// Change is one record mutation derived from a diff. Record is the version
// to write; for deletions it is the target version being removed.
type Change struct {
	Type     ChangeType                  `json:"type" yaml:"type"`
	ID       string                      `json:"id" yaml:"id"`
	Record   record.Record               `json:"record" yaml:"record"`
	Previous record.Record               `json:"previous,omitempty" yaml:"previous,omitempty"`
	Fields   map[string]diff.FieldChange `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ChangesFromDiff flattens a diff into changes: additions, then
// modifications, then deletions, each in diff order.
func ChangesFromDiff(d diff.Result) []Change {
	changes := make([]Change, 0, d.Summary.TotalChanges)
	for _, r := range d.Added {
		id, _ := r.ID()
		changes = append(changes, Change{Type: ChangeAdd, ID: id, Record: r})
	}
	for _, m := range d.Modified {
		changes = append(changes, Change{Type: ChangeModify, ID: m.ID, Record: m.Source, Previous: m.Target, Fields: m.Changes})
	}
	for _, r := range d.Deleted {
		id, _ := r.ID()
		changes = append(changes, Change{Type: ChangeDelete, ID: id, Record: r})
	}
	return changes
}

// Options accompany a sync request.
type Options struct {
	// Source identifies where the source collection came from. Required.
	Source string `json:"source" yaml:"source"`

	// Target optionally identifies the target collection.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`

	// Metadata is passed through to the coordinator untouched.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SyncOutcome is what a coordinator reports for SyncData.
type SyncOutcome struct {
	Success bool `json:"success" yaml:"success"`
	Synced  int  `json:"synced" yaml:"synced"`
}

// ConflictOutcome is what a coordinator reports for HandleConflicts.
type ConflictOutcome struct {
	Success             bool `json:"success" yaml:"success"`
	ResolvedConflicts   int  `json:"resolved_conflicts" yaml:"resolved_conflicts"`
	UnresolvedConflicts int  `json:"unresolved_conflicts" yaml:"unresolved_conflicts"`
}

// SyncCoordinator persists or transmits records on behalf of the engine.
// It is supplied by the surrounding application.
type SyncCoordinator interface {
	SyncData(ctx context.Context, changes []Change, opts Options) (SyncOutcome, error)
	HandleConflicts(ctx context.Context, conflicts conflict.Result) (ConflictOutcome, error)
}

// ComparisonEngine computes the diff between two collections.
type ComparisonEngine interface {
	CalculateDifferences(source, target []record.Record) diff.Result
	Configure(cfg diff.Config) error
	Statistics() diff.Statistics
}

// ConflictService classifies modified records as conflicts.
type ConflictService interface {
	DetectConflicts(source, target []record.Record, modified []diff.Modification) conflict.Result
	Configure(cfg conflict.Config) error
	MarkResolved(n int)
	Statistics() conflict.Statistics
}

// RetryCoordinator decides retry eligibility and runs retries.
type RetryCoordinator interface {
	CanRetry(jobID string, err error) bool
	ExecuteRetry(ctx context.Context, jobID string, op retry.Operation) retry.Outcome
	Forget(jobID string)
	Configure(cfg retry.Config) error
	RetryStatistics() retry.Statistics
}

// statisticsResetter and statisticsClearer are the two reset method names
// components may expose.
type statisticsResetter interface{ ResetStatistics() }

type statisticsClearer interface{ ClearStatistics() }

var (
	_ ComparisonEngine = (*diff.Engine)(nil)
	_ ConflictService  = (*conflict.Detector)(nil)
	_ RetryCoordinator = (*retry.Coordinator)(nil)
	_ SyncCoordinator  = NoopCoordinator{}
)

// NoopCoordinator accepts every request and reports nothing synchronized.
// It must be chosen explicitly.
type NoopCoordinator struct{}

func (NoopCoordinator) SyncData(ctx context.Context, changes []Change, opts Options) (SyncOutcome, error) {
	return SyncOutcome{Success: true, Synced: 0}, nil
}

func (NoopCoordinator) HandleConflicts(ctx context.Context, conflicts conflict.Result) (ConflictOutcome, error) {
	return ConflictOutcome{Success: true}, nil
}
