// Package retry tracks per-job retry attempts and runs retries with
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/logging"
)

// Config controls retry eligibility and delays.
type Config struct {
	MaxRetryAttempts int           `json:"max_retry_attempts" yaml:"max_retry_attempts" mapstructure:"max_retry_attempts"`
	BaseBackoff      time.Duration `json:"base_backoff" yaml:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff       time.Duration `json:"max_backoff" yaml:"max_backoff" mapstructure:"max_backoff"`
}

// DefaultConfig allows three retries starting at 100ms and capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts: 3,
		BaseBackoff:      100 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
	}
}

// Validate checks that the limits are usable.
func (c Config) Validate() error {
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max retry attempts must not be negative, got %d", c.MaxRetryAttempts)
	}
	if c.BaseBackoff < 0 {
		return fmt.Errorf("base backoff must not be negative, got %s", c.BaseBackoff)
	}
	if c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("max backoff %s is below base backoff %s", c.MaxBackoff, c.BaseBackoff)
	}
	return nil
}

// Operation is the work re-invoked by ExecuteRetry.
type Operation func(ctx context.Context) (any, error)

// State is the retry bookkeeping of one job.
type State struct {
	JobID       string        `json:"job_id" yaml:"job_id"`
	Attempts    int           `json:"attempts" yaml:"attempts"`
	LastError   error         `json:"-" yaml:"-"`
	NextBackoff time.Duration `json:"next_backoff" yaml:"next_backoff"`
}

// Outcome is the result of a single ExecuteRetry call.
type Outcome struct {
	Success    bool
	Result     any
	RetryCount int
	Err        error
}

// Statistics are the aggregate retry counters.
type Statistics struct {
	TotalRetries      int64 `json:"total_retries" yaml:"total_retries"`
	SuccessfulRetries int64 `json:"successful_retries" yaml:"successful_retries"`
	FailedRetries     int64 `json:"failed_retries" yaml:"failed_retries"`
	ActiveJobs        int   `json:"active_jobs" yaml:"active_jobs"`
}

type jobState struct {
	State
	bo *backoff.ExponentialBackOff
}

// Coordinator owns the retry state of every job. State is keyed by job id
// and one job never affects another.
type Coordinator struct {
	mu     sync.Mutex
	cfg    Config
	jobs   map[string]*jobState
	stats  Statistics
	logger *logging.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig replaces the default retry config.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithLogger sets the logger used by the coordinator.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l.WithComponent(logging.ComponentRetry)
		}
	}
}

// NewCoordinator creates a Coordinator with DefaultConfig unless overridden.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:    DefaultConfig(),
		jobs:   make(map[string]*jobState),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the active configuration.
func (c *Coordinator) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Configure validates cfg and makes it the active configuration. Backoff
// sequences of jobs already in flight are kept.
func (c *Coordinator) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

// IsRetryable classifies err. Permanent backoff errors, context
// cancellation and SyncErrors marked non-retryable are fixed conditions;
// anything else is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return true
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if syncErrors.IsContextError(err) {
		return false
	}
	var syncErr *syncErrors.SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return true
}

// CanRetry reports whether jobID may be retried after err.
func (c *Coordinator) CanRetry(jobID string, err error) bool {
	if !IsRetryable(err) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if js, ok := c.jobs[jobID]; ok {
		return js.Attempts < c.cfg.MaxRetryAttempts
	}
	return c.cfg.MaxRetryAttempts > 0
}

// ExecuteRetry records another attempt for jobID, waits out the job's next
// backoff interval and then runs op. The wait honors ctx and only blocks
// the calling goroutine. Once the job has used up its attempts op is not
// invoked and a retry exhausted error is returned.
func (c *Coordinator) ExecuteRetry(ctx context.Context, jobID string, op Operation) Outcome {
	c.mu.Lock()
	js := c.jobLocked(jobID)
	if js.Attempts >= c.cfg.MaxRetryAttempts {
		attempts := js.Attempts
		last := js.LastError
		c.mu.Unlock()
		return Outcome{
			RetryCount: attempts,
			Err:        syncErrors.NewRetryExhaustedError(jobID, attempts, last),
		}
	}
	js.Attempts++
	wait := js.bo.NextBackOff()
	js.NextBackoff = wait
	attempt := js.Attempts
	c.stats.TotalRetries++
	c.mu.Unlock()

	logger := c.logger.WithJob(jobID)
	logger.DebugContext(ctx, "retry scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("backoff", wait),
	)

	if err := sleep(ctx, wait); err != nil {
		c.recordFailure(jobID, err)
		return Outcome{RetryCount: attempt, Err: err}
	}

	result, err := op(ctx)
	if err != nil {
		c.recordFailure(jobID, err)
		logger.WarnContext(ctx, "retry attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		return Outcome{RetryCount: attempt, Err: err}
	}

	c.mu.Lock()
	c.stats.SuccessfulRetries++
	delete(c.jobs, jobID)
	c.mu.Unlock()

	logger.InfoContext(ctx, "retry succeeded", slog.Int("attempt", attempt))
	return Outcome{Success: true, Result: result, RetryCount: attempt}
}

func (c *Coordinator) jobLocked(jobID string) *jobState {
	js, ok := c.jobs[jobID]
	if ok {
		return js
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BaseBackoff
	bo.MaxInterval = c.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset()
	js = &jobState{State: State{JobID: jobID}, bo: bo}
	c.jobs[jobID] = js
	return js
}

func (c *Coordinator) recordFailure(jobID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.FailedRetries++
	if js, ok := c.jobs[jobID]; ok {
		js.LastError = err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns the bookkeeping of jobID, if the job has any.
func (c *Coordinator) State(jobID string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	js, ok := c.jobs[jobID]
	if !ok {
		return State{}, false
	}
	return js.State, true
}

// Forget drops the state of jobID.
func (c *Coordinator) Forget(jobID string) {
	c.mu.Lock()
	delete(c.jobs, jobID)
	c.mu.Unlock()
}

// RetryStatistics returns a snapshot of the aggregate counters.
func (c *Coordinator) RetryStatistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.ActiveJobs = len(c.jobs)
	return stats
}

// ResetStatistics zeroes the aggregate counters. Per-job state is kept.
func (c *Coordinator) ResetStatistics() {
	c.mu.Lock()
	c.stats = Statistics{}
	c.mu.Unlock()
}
