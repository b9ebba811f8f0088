// Package schedule runs periodic engine jobs such as auto-tuning and
// recurring syncs on cron specs.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Entry describes a registered job.
type Entry struct {
	Name     string
	Spec     string
	Next     time.Time
	Prev     time.Time
	Runs     int
	Failures int
}

type entry struct {
	id       cron.EntryID
	spec     string
	runs     int
	failures int
}

// Scheduler wraps a cron runner. Overlapping runs of the same job are
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// Option configures a Scheduler.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	logger  *logging.Logger
	seconds bool
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *schedulerOptions) { o.logger = l }
}

// WithSeconds accepts six-field specs with a leading seconds field.
func WithSeconds() Option {
	return func(o *schedulerOptions) { o.seconds = true }
}

// New creates a stopped Scheduler.
func New(opts ...Option) *Scheduler {
	o := &schedulerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	logger := o.logger.WithComponent(logging.ComponentScheduler)

	cronOpts := []cron.Option{
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	}
	if o.seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cronOpts...),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		entries: map[string]*entry{},
	}
}

// Add registers job under name. An empty spec is ignored.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		return nil
	}
	if job == nil {
		return fmt.Errorf("job %s is nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.entries[name] = &entry{id: id, spec: spec}
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	err := job(s.ctx)

	s.mu.Lock()
	if e, ok := s.entries[name]; ok {
		e.runs++
		if err != nil {
			e.failures++
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.LogError(s.ctx, err, "scheduled job failed", slog.String("job", name))
		return
	}
	s.logger.Debug("scheduled job finished", slog.String("job", name), slog.Duration("duration", time.Since(start)))
}

// Entries lists registered jobs.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for name, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, Entry{
			Name:     name,
			Spec:     e.spec,
			Next:     ce.Next,
			Prev:     ce.Prev,
			Runs:     e.runs,
			Failures: e.failures,
		})
	}
	return out
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AutoTuneJob applies OptimizeSyncPerformance to the orchestrator's rolling
// statistics.
func AutoTuneJob(o *orchestrator.Orchestrator) Job {
	return func(ctx context.Context) error {
		_, err := o.AutoTune()
		return err
	}
}

// Loader fetches the two collections for a scheduled sync.
type Loader func(ctx context.Context) (source, target []record.Record, err error)

// SyncJob loads both collections and orchestrates a sync between them.
func SyncJob(o *orchestrator.Orchestrator, load Loader, opts orchestrator.Options) Job {
	return func(ctx context.Context) error {
		source, target, err := load(ctx)
		if err != nil {
			return fmt.Errorf("load collections: %w", err)
		}
		res := o.OrchestrateSync(ctx, source, target, opts)
		if !res.Success {
			return res.Err
		}
		return nil
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
