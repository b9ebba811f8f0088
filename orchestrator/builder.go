package orchestrator

import (
	"errors"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/retry"
)

// Builder provides a fluent interface for constructing an Orchestrator.
// A SyncCoordinator is required; pass NoopCoordinator to run without one.
type Builder struct {
	coordinator SyncCoordinator
	comparison  ComparisonEngine
	conflicts   ConflictService
	retry       RetryCoordinator
	metrics     MetricsCollector
	logger      *logging.Logger
	config      Config
}

// NewBuilder creates a new builder with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithCoordinator sets the collaborator that applies changes.
func (b *Builder) WithCoordinator(c SyncCoordinator) *Builder {
	b.coordinator = c
	return b
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg.clone()
	return b
}

// WithComparisonEngine overrides the built-in diff engine.
func (b *Builder) WithComparisonEngine(e ComparisonEngine) *Builder {
	b.comparison = e
	return b
}

// WithConflictService overrides the built-in conflict detector.
func (b *Builder) WithConflictService(s ConflictService) *Builder {
	b.conflicts = s
	return b
}

// WithRetryCoordinator overrides the built-in retry coordinator.
func (b *Builder) WithRetryCoordinator(r RetryCoordinator) *Builder {
	b.retry = r
	return b
}

// WithMetrics sets the metrics collector.
func (b *Builder) WithMetrics(m MetricsCollector) *Builder {
	b.metrics = m
	return b
}

// WithLogger sets the logger shared by all components.
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithBatchSize sets the batch size used by the batch strategy.
func (b *Builder) WithBatchSize(size int) *Builder {
	b.config.BatchSize = size
	return b
}

// WithMaxConcurrentJobs bounds concurrently running jobs.
func (b *Builder) WithMaxConcurrentJobs(n int) *Builder {
	b.config.MaxConcurrentJobs = n
	return b
}

// WithParallelProcessing toggles concurrent batch execution.
func (b *Builder) WithParallelProcessing(enabled bool) *Builder {
	b.config.EnableParallelProcessing = enabled
	return b
}

// WithMaxSyncAttempts caps the retries of a single job.
func (b *Builder) WithMaxSyncAttempts(n int) *Builder {
	b.config.MaxSyncAttempts = n
	return b
}

// Build validates the configuration and wires the components. Components
// that were not supplied are created from the configuration; supplied ones
// are configured with it.
func (b *Builder) Build() (*Orchestrator, error) {
	const op = "orchestrator.Build"

	if b.coordinator == nil {
		return nil, syncErrors.E(
			syncErrors.Op(op),
			syncErrors.Component("orchestrator"),
			syncErrors.KindValidation,
			errors.New("sync coordinator is required (use WithCoordinator(...) or NoopCoordinator{})"),
		)
	}
	if err := b.config.Validate(); err != nil {
		return nil, syncErrors.E(syncErrors.Op(op), syncErrors.Component("orchestrator"), syncErrors.KindValidation, err)
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := b.config.clone()

	comparison := b.comparison
	if comparison == nil {
		comparison = diff.NewEngine(diff.WithConfig(cfg.Comparison), diff.WithLogger(logger))
	} else if err := comparison.Configure(cfg.Comparison); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, op, "diff", syncErrors.KindValidation)
	}

	conflicts := b.conflicts
	if conflicts == nil {
		conflicts = conflict.NewDetector(conflict.WithConfig(cfg.Conflict), conflict.WithLogger(logger))
	} else if err := conflicts.Configure(cfg.Conflict); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, op, "conflict", syncErrors.KindValidation)
	}

	retrier := b.retry
	if retrier == nil {
		retrier = retry.NewCoordinator(retry.WithConfig(cfg.Retry), retry.WithLogger(logger))
	} else if err := retrier.Configure(cfg.Retry); err != nil {
		return nil, syncErrors.WrapOpComponentKind(err, op, "retry", syncErrors.KindValidation)
	}

	metrics := b.metrics
	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}

	o := &Orchestrator{
		coordinator: b.coordinator,
		comparison:  comparison,
		conflicts:   conflicts,
		retry:       retrier,
		metrics:     metrics,
		logger:      logger.WithComponent(logging.ComponentOrchestrator),
	}
	o.cfg.Store(&cfg)
	return o, nil
}

// Option is a functional option for New.
type Option func(*Builder) error

// New constructs an Orchestrator using functional options on top of the builder.
func New(opts ...Option) (*Orchestrator, error) {
	b := NewBuilder()
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, syncErrors.NewWithComponent(syncErrors.OpConfigure, "orchestrator", err)
		}
	}
	return b.Build()
}

// WithCoordinator injects the collaborator that applies changes.
func WithCoordinator(c SyncCoordinator) Option {
	return func(b *Builder) error {
		if c == nil {
			return errors.New("coordinator cannot be nil")
		}
		b.WithCoordinator(c)
		return nil
	}
}

// WithConfig injects a complete configuration.
func WithConfig(cfg Config) Option {
	return func(b *Builder) error {
		b.WithConfig(cfg)
		return nil
	}
}

// WithLogger injects the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Builder) error {
		b.WithLogger(l)
		return nil
	}
}

// WithMetrics injects a metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(b *Builder) error {
		b.WithMetrics(m)
		return nil
	}
}

// WithComponents overrides the built-in components. Nil arguments keep the
// built-in implementation.
func WithComponents(comparison ComparisonEngine, conflicts ConflictService, retrier RetryCoordinator) Option {
	return func(b *Builder) error {
		if comparison != nil {
			b.WithComparisonEngine(comparison)
		}
		if conflicts != nil {
			b.WithConflictService(conflicts)
		}
		if retrier != nil {
			b.WithRetryCoordinator(retrier)
		}
		return nil
	}
}
