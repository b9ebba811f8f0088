// Package orchestrator drives the synchronization pipeline: comparison,
// conflict detection and reconciliation through a SyncCoordinator, with
// bounded retries, strategy selection, self-tuning and reporting.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// Errors reported when a coordinator answers without an error but also
// without success. Both are treated as transient.
var (
	ErrSyncRejected     = errors.New("coordinator reported an unsuccessful sync")
	ErrConflictsPending = errors.New("coordinator reported unsuccessful conflict handling")
)

// SyncResult is the outcome of one OrchestrateSync call. On failure Stage
// names the pipeline phase that failed and Error describes the failure.
type SyncResult struct {
	JobID               string            `json:"job_id" yaml:"job_id"`
	Success             bool              `json:"success" yaml:"success"`
	Synchronized        int               `json:"synchronized" yaml:"synchronized"`
	Conflicts           int               `json:"conflicts" yaml:"conflicts"`
	ConflictsResolved   int               `json:"conflicts_resolved" yaml:"conflicts_resolved"`
	UnresolvedConflicts int               `json:"unresolved_conflicts" yaml:"unresolved_conflicts"`
	ConflictSeverity    conflict.Severity `json:"conflict_severity" yaml:"conflict_severity"`
	SkippedChanges      int               `json:"skipped_changes" yaml:"skipped_changes"`
	Differences         diff.Summary      `json:"differences" yaml:"differences"`
	Strategy            Strategy          `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	RetryCount          int               `json:"retry_count" yaml:"retry_count"`
	ProcessingTime      time.Duration     `json:"processing_time" yaml:"processing_time"`
	Timestamp           time.Time         `json:"timestamp" yaml:"timestamp"`
	Stage               syncErrors.Stage  `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error               string            `json:"error,omitempty" yaml:"error,omitempty"`
	Err                 error             `json:"-" yaml:"-"`
}

// Orchestrator runs synchronizations. It is safe for concurrent use.
type Orchestrator struct {
	cfg   atomic.Pointer[Config]
	cfgMu sync.Mutex

	coordinator SyncCoordinator
	comparison  ComparisonEngine
	conflicts   ConflictService
	retry       RetryCoordinator
	metrics     MetricsCollector
	logger      *logging.Logger

	mu    sync.Mutex
	stats Statistics
}

// Config returns a copy of the active configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg.Load().clone()
}

// UpdateConfig validates cfg, pushes the component sections to the
// components and swaps it in as the active configuration. Calls already in
// progress keep the configuration they started with.
func (o *Orchestrator) UpdateConfig(cfg Config) error {
	const op = "orchestrator.UpdateConfig"

	if err := cfg.Validate(); err != nil {
		return syncErrors.E(syncErrors.Op(op), syncErrors.Component("orchestrator"), syncErrors.KindValidation, err)
	}

	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()

	if err := o.comparison.Configure(cfg.Comparison); err != nil {
		return syncErrors.WrapOpComponentKind(err, op, "diff", syncErrors.KindValidation)
	}
	if err := o.conflicts.Configure(cfg.Conflict); err != nil {
		return syncErrors.WrapOpComponentKind(err, op, "conflict", syncErrors.KindValidation)
	}
	if err := o.retry.Configure(cfg.Retry); err != nil {
		return syncErrors.WrapOpComponentKind(err, op, "retry", syncErrors.KindValidation)
	}

	next := cfg.clone()
	o.cfg.Store(&next)

	o.logger.Info("configuration updated",
		slog.Int("batch_size", next.BatchSize),
		slog.Bool("parallel", next.EnableParallelProcessing),
		slog.String("conflict_level", string(next.Conflict.Level)),
	)
	return nil
}

// OrchestrateSync compares source against target, detects conflicts and
// hands the outcome to the coordinator. It never returns an error or
// panics; every failure becomes a failed SyncResult tagged with its stage.
func (o *Orchestrator) OrchestrateSync(ctx context.Context, source, target []record.Record, opts Options) (result *SyncResult) {
	start := time.Now()
	cfg := o.Config()
	result = &SyncResult{JobID: uuid.NewString(), Timestamp: start}
	logger := o.logger.WithJob(result.JobID)
	phase := syncErrors.StageUnknown

	defer func() {
		if r := recover(); r != nil {
			err := syncErrors.E(syncErrors.OpOrchestrate, syncErrors.Component("orchestrator"), syncErrors.KindInternal, phase,
				fmt.Sprintf("panic: %v", r))
			fail(result, err, phase)
		}
		result.ProcessingTime = time.Since(start)
		o.record(result)

		if result.Success {
			logger.InfoContext(ctx, "sync completed",
				slog.String("source", opts.Source),
				slog.String("strategy", string(result.Strategy)),
				slog.Int("synchronized", result.Synchronized),
				slog.Int("conflicts", result.Conflicts),
				slog.Duration("duration", result.ProcessingTime),
			)
			return
		}
		logger.LogError(ctx, result.Err, "sync failed",
			slog.String("source", opts.Source),
			slog.String("stage", string(result.Stage)),
		)
	}()

	if err := ctx.Err(); err != nil {
		fail(result, syncErrors.E(syncErrors.OpOrchestrate, syncErrors.Component("orchestrator"), err), phase)
		return result
	}

	phase = syncErrors.StageComparison
	differences := o.comparison.CalculateDifferences(source, target)
	result.Differences = differences.Summary

	phase = syncErrors.StageConflictDetection
	conflicts := conflict.NoConflicts()
	if cfg.EnableConflictDetection {
		conflicts = o.conflicts.DetectConflicts(source, target, differences.Modified)
	}
	result.Conflicts = conflicts.Count()
	result.ConflictSeverity = conflicts.Severity
	if conflicts.HasConflicts {
		o.metrics.RecordConflicts(conflicts.Count(), string(conflicts.Severity))
	}

	decision := o.ExecuteIntelligentSync(differences, conflicts)
	result.Strategy = decision.Strategy

	phase = syncErrors.StageSynchronization
	if err := o.synchronize(ctx, cfg, differences, conflicts, decision, opts, result); err != nil {
		fail(result, synchronizationFailure(err), phase)
		return result
	}

	result.Success = true
	return result
}

// synchronize runs the reconciliation phase. Conflicted runs go to
// HandleConflicts, everything else to SyncData.
func (o *Orchestrator) synchronize(ctx context.Context, cfg Config, differences diff.Result, conflicts conflict.Result,
	decision StrategyDecision, opts Options, result *SyncResult) error {
	changes := ChangesFromDiff(differences)

	if !conflicts.HasConflicts {
		return o.syncChanges(ctx, cfg, changes, decision, opts, result)
	}

	job := NewJob(nil, opts)
	res, err := o.runJob(ctx, cfg, job, func(ctx context.Context) (any, error) {
		out, err := o.coordinator.HandleConflicts(ctx, conflicts)
		if err != nil {
			return nil, err
		}
		if !out.Success {
			return out, ErrConflictsPending
		}
		return out, nil
	})
	result.RetryCount += job.RetryCount
	if err != nil {
		return err
	}

	outcome, _ := res.(ConflictOutcome)
	result.ConflictsResolved = outcome.ResolvedConflicts
	result.UnresolvedConflicts = outcome.UnresolvedConflicts
	o.conflicts.MarkResolved(outcome.ResolvedConflicts)
	// a resolved conflict was applied by the coordinator
	result.Synchronized += outcome.ResolvedConflicts
	o.metrics.RecordSynchronized(outcome.ResolvedConflicts)

	rest := withoutConflicting(changes, conflicts)
	if !cfg.SyncNonConflictingChanges {
		result.SkippedChanges = len(rest)
		if len(rest) > 0 {
			o.logger.WarnContext(ctx, "non-conflicting changes held back",
				slog.String("source", opts.Source),
				slog.Int("skipped", len(rest)),
			)
		}
		return nil
	}
	return o.syncChanges(ctx, cfg, rest, decision, opts, result)
}

// syncChanges sends changes to the coordinator as one job, or as BatchSize
// jobs under the batch strategy. Batches run one at a time unless parallel
// processing is enabled, in which case MaxConcurrentJobs bound them. The
// first failure or a cancelled context stops scheduling further batches.
func (o *Orchestrator) syncChanges(ctx context.Context, cfg Config, changes []Change, decision StrategyDecision,
	opts Options, result *SyncResult) error {
	batches := [][]Change{changes}
	if decision.Strategy == StrategyBatch {
		batches = splitBatches(changes, cfg.BatchSize)
	}

	limit := 1
	if cfg.EnableParallelProcessing {
		limit = cfg.MaxConcurrentJobs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var synced, retries atomic.Int64
	scheduled := 0
	for _, batch := range batches {
		if gctx.Err() != nil {
			break
		}
		job := NewJob(batch, opts)
		scheduled++
		g.Go(func() error {
			out := o.HandleSyncWithRetry(gctx, job)
			retries.Add(int64(out.RetryCount))
			if !out.Success {
				return out.Err
			}
			synced.Add(int64(out.Result.Synced))
			return nil
		})
	}
	err := g.Wait()

	result.Synchronized += int(synced.Load())
	result.RetryCount += int(retries.Load())
	o.metrics.RecordSynchronized(int(synced.Load()))

	if err == nil && scheduled < len(batches) {
		err = ctx.Err()
	}
	return err
}

func splitBatches(changes []Change, size int) [][]Change {
	if size <= 0 || len(changes) <= size {
		if len(changes) == 0 {
			return nil
		}
		return [][]Change{changes}
	}
	batches := make([][]Change, 0, (len(changes)+size-1)/size)
	for start := 0; start < len(changes); start += size {
		end := min(start+size, len(changes))
		batches = append(batches, changes[start:end])
	}
	return batches
}

func withoutConflicting(changes []Change, conflicts conflict.Result) []Change {
	ids := make(map[string]struct{}, len(conflicts.Records))
	for _, rc := range conflicts.Records {
		ids[rc.ID] = struct{}{}
	}
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if _, ok := ids[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// synchronizationFailure classifies an error leaving the reconciliation
// phase. Errors already in the taxonomy keep their kind.
func synchronizationFailure(err error) error {
	if syncErrors.KindOf(err) == syncErrors.KindUnknown {
		return syncErrors.NewSynchronizationError(syncErrors.OpSync, err)
	}
	return syncErrors.WithStage(err, syncErrors.StageSynchronization)
}

// fail marks result as failed. The stage tag carried by err wins over the
// phase that was executing.
func fail(result *SyncResult, err error, phase syncErrors.Stage) {
	stage := syncErrors.StageOf(err)
	if stage == "" {
		stage = phase
	}
	if stage == "" {
		stage = syncErrors.StageUnknown
	}
	result.Success = false
	result.Stage = stage
	result.Err = err
	result.Error = err.Error()
}

func (o *Orchestrator) record(result *SyncResult) {
	o.mu.Lock()
	o.stats.TotalOrchestrations++
	if result.Success {
		o.stats.SuccessfulSyncs++
	} else {
		o.stats.FailedSyncs++
	}
	o.stats.TotalProcessingTime += result.ProcessingTime
	o.stats.TotalConflicts += int64(result.Conflicts)
	o.stats.TotalSynchronized += int64(result.Synchronized)
	o.stats.TotalRetries += int64(result.RetryCount)
	o.stats.LastOrchestration = result.Timestamp
	o.mu.Unlock()

	o.metrics.RecordSyncDuration(string(result.Strategy), result.ProcessingTime)
	o.metrics.RecordSyncResult(result.Success, string(result.Stage))
}
