// Package diff computes field-level differences between two record collections.
package diff

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// ChangeModified is the only FieldChange type produced.
const ChangeModified = "modified"

// FieldChange is one field's divergence. From is the target value, To the
// source value.
type FieldChange struct {
	From     any      `json:"from" yaml:"from"`
	To       any      `json:"to" yaml:"to"`
	Type     string   `json:"type" yaml:"type"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// Modification describes a record present on both sides with differing fields.
type Modification struct {
	ID      string                 `json:"id" yaml:"id"`
	Source  record.Record          `json:"source" yaml:"source"`
	Target  record.Record          `json:"target" yaml:"target"`
	Changes map[string]FieldChange `json:"changes" yaml:"changes"`
}

// ChangedFields returns the names of the changed fields, sorted.
func (m Modification) ChangedFields() []string {
	fields := make([]string, 0, len(m.Changes))
	for f := range m.Changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Summary counts the partition of a Result.
type Summary struct {
	AddedCount      int           `json:"added_count" yaml:"added_count"`
	ModifiedCount   int           `json:"modified_count" yaml:"modified_count"`
	DeletedCount    int           `json:"deleted_count" yaml:"deleted_count"`
	UnchangedCount  int           `json:"unchanged_count" yaml:"unchanged_count"`
	TotalChanges    int           `json:"total_changes" yaml:"total_changes"`
	CalculationTime time.Duration `json:"calculation_time" yaml:"calculation_time"`
	Timestamp       time.Time     `json:"timestamp" yaml:"timestamp"`
}

// Result partitions the source and target collections. Every surviving
// source id is in exactly one of Added, Modified or Unchanged and every
// target-only id is in Deleted exactly once.
type Result struct {
	Added     []record.Record `json:"added" yaml:"added"`
	Modified  []Modification  `json:"modified" yaml:"modified"`
	Deleted   []record.Record `json:"deleted" yaml:"deleted"`
	Unchanged []record.Record `json:"unchanged" yaml:"unchanged"`
	Summary   Summary         `json:"summary" yaml:"summary"`
}

// HasChanges reports whether anything was added, modified or deleted.
func (r Result) HasChanges() bool {
	return r.Summary.TotalChanges > 0
}

// Statistics are the running counters of an Engine.
type Statistics struct {
	TotalCalculations     int64         `json:"total_calculations" yaml:"total_calculations"`
	TotalChangesProcessed int64         `json:"total_changes_processed" yaml:"total_changes_processed"`
	TotalCalculationTime  time.Duration `json:"total_calculation_time" yaml:"total_calculation_time"`
	LastCalculation       time.Time     `json:"last_calculation" yaml:"last_calculation"`
}

// Engine computes differences between record collections. The computation
// itself is pure; only the statistics are shared and they are mutex guarded.
type Engine struct {
	mu     sync.RWMutex
	cfg    Config
	stats  Statistics
	logger *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default comparison config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg.clone() }
}

// WithLogger sets the logger used by the engine.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithComponent(logging.ComponentDiff)
		}
	}
}

// NewEngine creates an Engine with DefaultConfig unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cfg:    DefaultConfig(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.clone()
}

// Configure validates cfg and makes it the active configuration.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg.clone()
	e.mu.Unlock()
	return nil
}

// CalculateDifferences partitions source against target. Malformed entries
// are dropped rather than reported.
func (e *Engine) CalculateDifferences(source, target []record.Record) Result {
	start := time.Now()
	cfg := e.Config()

	src := record.Sanitize(source)
	tgt := record.Sanitize(target)
	if dropped := len(source) - len(src) + len(target) - len(tgt); dropped > 0 {
		e.logger.Debug("dropped records without usable id", slog.Int("count", dropped))
	}

	targetIndex := tgt.Index()
	seen := make(map[string]struct{}, len(src))

	res := Result{
		Added:     []record.Record{},
		Modified:  []Modification{},
		Deleted:   []record.Record{},
		Unchanged: []record.Record{},
	}

	for _, s := range src {
		id, _ := s.ID()
		seen[id] = struct{}{}

		t, ok := targetIndex[id]
		if !ok {
			res.Added = append(res.Added, s)
			continue
		}

		changes := compareRecords(s, t, cfg)
		if len(changes) == 0 {
			res.Unchanged = append(res.Unchanged, s)
			continue
		}
		res.Modified = append(res.Modified, Modification{
			ID:      id,
			Source:  s,
			Target:  t,
			Changes: changes,
		})
	}

	for _, t := range tgt {
		id, _ := t.ID()
		if _, ok := seen[id]; !ok {
			res.Deleted = append(res.Deleted, t)
		}
	}

	elapsed := time.Since(start)
	res.Summary = Summary{
		AddedCount:      len(res.Added),
		ModifiedCount:   len(res.Modified),
		DeletedCount:    len(res.Deleted),
		UnchangedCount:  len(res.Unchanged),
		TotalChanges:    len(res.Added) + len(res.Modified) + len(res.Deleted),
		CalculationTime: elapsed,
		Timestamp:       start,
	}

	e.mu.Lock()
	e.stats.TotalCalculations++
	e.stats.TotalChangesProcessed += int64(res.Summary.TotalChanges)
	e.stats.TotalCalculationTime += elapsed
	e.stats.LastCalculation = start
	e.mu.Unlock()

	e.logger.DebugContext(context.Background(), "differences calculated",
		slog.Int("added", res.Summary.AddedCount),
		slog.Int("modified", res.Summary.ModifiedCount),
		slog.Int("deleted", res.Summary.DeletedCount),
		slog.Int("unchanged", res.Summary.UnchangedCount),
		slog.Duration("duration", elapsed),
	)

	return res
}

// compareRecords returns one FieldChange per differing field, or nil.
func compareRecords(source, target record.Record, cfg Config) map[string]FieldChange {
	var changes map[string]FieldChange
	for _, field := range fieldsToCompare(source, target, cfg) {
		sv, sok := source.Get(field)
		tv, tok := target.Get(field)
		if valuesEqual(sv, tv, sok, tok, cfg) {
			continue
		}
		if changes == nil {
			changes = make(map[string]FieldChange)
		}
		changes[field] = FieldChange{
			From:     tv,
			To:       sv,
			Type:     ChangeModified,
			Severity: FieldSeverity(field, tv, sv),
		}
	}
	return changes
}

func fieldsToCompare(source, target record.Record, cfg Config) []string {
	if len(cfg.CompareFields) > 0 {
		return cfg.CompareFields
	}
	set := make(map[string]struct{}, len(source)+len(target))
	for k := range source {
		set[k] = struct{}{}
	}
	for k := range target {
		set[k] = struct{}{}
	}
	delete(set, record.IDField)

	fields := make([]string, 0, len(set))
	for k := range set {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Statistics returns a snapshot of the engine counters.
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// ResetStatistics zeroes the engine counters.
func (e *Engine) ResetStatistics() {
	e.mu.Lock()
	e.stats = Statistics{}
	e.mu.Unlock()
}
