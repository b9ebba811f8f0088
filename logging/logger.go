// Package logging provides structured logging for the sync engine on top of log/slog.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
)

// Logger is our wrapper around slog.Logger with additional convenience methods
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level       string    `json:"level" yaml:"level" mapstructure:"level"`                   // debug, info, warn, error
	Format      string    `json:"format" yaml:"format" mapstructure:"format"`                // text, json
	AddSource   bool      `json:"add_source" yaml:"add_source" mapstructure:"add_source"`    // whether to add source code information
	Environment string    `json:"environment" yaml:"environment" mapstructure:"environment"` // development, production, test
	Output      io.Writer `json:"-" yaml:"-" mapstructure:"-"`                               // defaults to os.Stderr
}

// DefaultConfig is used when no configuration was supplied.
var DefaultConfig = Config{
	Level:       "info",
	Format:      "json",
	AddSource:   false,
	Environment: EnvProduction,
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Operation names a logged engine operation.
type Operation string

func (o Operation) LogValue() slog.Value {
	return slog.StringValue(string(o))
}

// Component names the engine component emitting a record.
type Component string

func (c Component) LogValue() slog.Value {
	return slog.StringValue(string(c))
}

// Components of the engine, used for child loggers.
const (
	ComponentDiff         Component = "diff"
	ComponentConflict     Component = "conflict"
	ComponentRetry        Component = "retry"
	ComponentOrchestrator Component = "orchestrator"
	ComponentStore        Component = "store"
	ComponentScheduler    Component = "scheduler"
	ComponentCLI          Component = "cli"
)

// SyncErrorValuer provides structured logging for SyncError
type SyncErrorValuer struct {
	*syncErrors.SyncError
}

func (e SyncErrorValuer) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("operation", string(e.Op)),
		slog.String("component", e.Component),
		slog.String("code", string(e.Code)),
		slog.String("kind", string(e.Kind)),
		slog.String("stage", string(e.Stage)),
		slog.Bool("retryable", e.Retryable),
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	if e.Metadata != nil {
		metadataAttrs := make([]slog.Attr, 0, len(e.Metadata))
		for k, v := range e.Metadata {
			metadataAttrs = append(metadataAttrs, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Any("metadata", slog.GroupValue(metadataAttrs...)))
	}

	return slog.GroupValue(attrs...)
}

// ParseLevel maps a level name onto a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new logger with the provided configuration
func NewLogger(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Init initializes the global logger with the provided configuration
func Init(config Config) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	setDefault(NewLogger(config))
}

// Default returns the default logger instance, initializing it from
// DefaultConfig on first use. Safe for concurrent use.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		setDefault(NewLogger(DefaultConfig))
	}
	return defaultLogger
}

func setDefault(l *Logger) {
	defaultLogger = l
	slog.SetDefault(l.Logger)
}

// WithOperation creates a child logger with operation context
func (l *Logger) WithOperation(op Operation) *Logger {
	return &Logger{Logger: l.With(slog.Any("operation", op))}
}

// WithComponent creates a child logger with component context
func (l *Logger) WithComponent(component Component) *Logger {
	return &Logger{Logger: l.With(slog.Any("component", component))}
}

// WithJob creates a child logger scoped to a sync job
func (l *Logger) WithJob(jobID string) *Logger {
	return &Logger{Logger: l.With(slog.String("job_id", jobID))}
}

// LogError logs an error with caller information and structured attributes
func (l *Logger) LogError(ctx context.Context, err error, msg string, attrs ...slog.Attr) {
	allAttrs := make([]any, 0, len(attrs)+2)

	var syncErr *syncErrors.SyncError
	if errors.As(err, &syncErr) {
		allAttrs = append(allAttrs, slog.Any("sync_error", SyncErrorValuer{SyncError: syncErr}))
	} else if err != nil {
		allAttrs = append(allAttrs, slog.String("error", err.Error()))
	}

	pc, file, line, ok := runtime.Caller(1)
	if ok {
		fn := runtime.FuncForPC(pc)
		allAttrs = append(allAttrs,
			slog.Group("caller",
				slog.String("file", file),
				slog.Int("line", line),
				slog.String("function", fn.Name()),
			),
		)
	}

	for _, attr := range attrs {
		allAttrs = append(allAttrs, attr)
	}

	l.ErrorContext(ctx, msg, allAttrs...)
}

// LogOperation logs the start and end of an operation with duration tracking
func (l *Logger) LogOperation(ctx context.Context, op Operation, fn func() error) error {
	start := time.Now()
	opLogger := l.WithOperation(op)

	opLogger.DebugContext(ctx, "operation started")

	err := fn()
	duration := time.Since(start)

	if err != nil {
		opLogger.LogError(ctx, err, "operation failed",
			slog.Duration("duration", duration),
			slog.Bool("success", false),
		)
		return err
	}

	opLogger.DebugContext(ctx, "operation completed",
		slog.Duration("duration", duration),
		slog.Bool("success", true),
	)

	return nil
}

// WithComponent returns a child of the default logger for component.
func WithComponent(component Component) *Logger {
	return Default().WithComponent(component)
}
