package orchestrator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/retry"
)

// JobState is a step of the job lifecycle:
// PENDING -> RUNNING -> SUCCEEDED | RETRYING | FAILED_PERMANENT, and
// RETRYING -> RUNNING for every retry attempt.
type JobState string

const (
	JobPending         JobState = "PENDING"
	JobRunning         JobState = "RUNNING"
	JobSucceeded       JobState = "SUCCEEDED"
	JobRetrying        JobState = "RETRYING"
	JobFailedPermanent JobState = "FAILED_PERMANENT"
)

// Job is one reconciliation attempt that is retried as a unit. A Job is
// driven by one goroutine at a time.
type Job struct {
	ID         string
	Changes    []Change
	Options    Options
	RetryCount int
	Err        error
	State      JobState
	History    []JobState
}

// NewJob creates a pending job with a fresh id.
func NewJob(changes []Change, opts Options) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Changes: changes,
		Options: opts,
		State:   JobPending,
		History: []JobState{JobPending},
	}
}

func (j *Job) transition(s JobState) {
	j.State = s
	j.History = append(j.History, s)
}

// JobOutcome is the result of HandleSyncWithRetry.
type JobOutcome struct {
	Success    bool
	Result     SyncOutcome
	Err        error
	RetryCount int
}

// HandleSyncWithRetry sends the job's changes to the coordinator. A job
// that already used up its attempts is refused without calling the
// coordinator. Otherwise the call is made once and, on failure, retried
// through the retry coordinator while it allows, so the coordinator sees at
// most MaxSyncAttempts+1 calls for the job.
func (o *Orchestrator) HandleSyncWithRetry(ctx context.Context, job *Job) JobOutcome {
	cfg := o.Config()
	res, err := o.runJob(ctx, cfg, job, func(ctx context.Context) (any, error) {
		out, err := o.coordinator.SyncData(ctx, job.Changes, job.Options)
		if err != nil {
			return nil, err
		}
		if !out.Success {
			return out, ErrSyncRejected
		}
		return out, nil
	})
	if err != nil {
		return JobOutcome{Err: err, RetryCount: job.RetryCount}
	}
	out, _ := res.(SyncOutcome)
	return JobOutcome{Success: true, Result: out, RetryCount: job.RetryCount}
}

// exhausted reports whether job may not be attempted again.
func (o *Orchestrator) exhausted(cfg Config, job *Job) bool {
	if job.State == JobFailedPermanent || job.RetryCount > cfg.MaxSyncAttempts {
		return true
	}
	if job.RetryCount > 0 && job.RetryCount == cfg.MaxSyncAttempts {
		return true
	}
	return job.Err != nil && !o.retry.CanRetry(job.ID, job.Err)
}

func (o *Orchestrator) runJob(ctx context.Context, cfg Config, job *Job, call retry.Operation) (any, error) {
	if job.State == "" {
		job.transition(JobPending)
	}
	logger := o.logger.WithJob(job.ID)

	if o.exhausted(cfg, job) {
		job.transition(JobFailedPermanent)
		job.Err = syncErrors.NewRetryExhaustedError(job.ID, job.RetryCount, job.Err)
		return nil, job.Err
	}
	if err := ctx.Err(); err != nil {
		job.Err = err
		job.transition(JobFailedPermanent)
		return nil, err
	}

	attempt := func(ctx context.Context) (any, error) {
		job.transition(JobRunning)
		return call(ctx)
	}

	res, err := attempt(ctx)
	exhausted := false
	for err != nil {
		job.Err = err
		if !cfg.EnableRetryMechanism {
			break
		}
		if job.RetryCount >= cfg.MaxSyncAttempts {
			exhausted = true
			break
		}
		if !o.retry.CanRetry(job.ID, err) {
			// transient errors refused here ran out of retry attempts
			exhausted = retry.IsRetryable(err)
			break
		}

		job.transition(JobRetrying)
		out := o.retry.ExecuteRetry(ctx, job.ID, attempt)
		if out.Success || syncErrors.KindOf(out.Err) != syncErrors.KindRetryExhausted {
			job.RetryCount++
			o.metrics.RecordRetry(out.Success)
		}
		if out.Success {
			res, err = out.Result, nil
			break
		}
		err = out.Err
	}
	o.retry.Forget(job.ID)

	if err != nil {
		if exhausted {
			err = syncErrors.NewRetryExhaustedError(job.ID, job.RetryCount, err)
		}
		job.Err = err
		job.transition(JobFailedPermanent)
		logger.WarnContext(ctx, "job failed permanently",
			slog.Int("retry_count", job.RetryCount),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	job.Err = nil
	job.transition(JobSucceeded)
	if job.RetryCount > 0 {
		logger.InfoContext(ctx, "job succeeded after retry", slog.Int("retry_count", job.RetryCount))
	}
	return res, nil
}
