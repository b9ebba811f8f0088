// Package conflict classifies modified records as genuine conflicts.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// Config controls the detection policy.
type Config struct {
	Level Level `json:"level" yaml:"level" mapstructure:"level"`

	// MultiFieldThreshold is the number of simultaneously changed fields
	// from which LevelEnhanced flags a record.
	MultiFieldThreshold int `json:"multi_field_threshold" yaml:"multi_field_threshold" mapstructure:"multi_field_threshold"`
}

// DefaultConfig returns STANDARD detection with a threshold of two fields.
func DefaultConfig() Config {
	return Config{Level: LevelStandard, MultiFieldThreshold: 2}
}

// Validate checks the level and threshold.
func (c Config) Validate() error {
	if c.Level != LevelStandard && c.Level != LevelEnhanced {
		return fmt.Errorf("unknown conflict detection level %q", c.Level)
	}
	if c.MultiFieldThreshold < 1 {
		return fmt.Errorf("multi-field threshold must be at least 1, got %d", c.MultiFieldThreshold)
	}
	return nil
}

// criticalHighFields is the number of high-severity fields on one record
// that escalates its items to CRITICAL. A single high field escalates too
// once the record has MultiFieldThreshold changed fields.
const criticalHighFields = 2

// Statistics are the running counters of a Detector.
type Statistics struct {
	TotalConflictsDetected int64 `json:"total_conflicts_detected" yaml:"total_conflicts_detected"`
	ResolvedConflicts      int64 `json:"resolved_conflicts" yaml:"resolved_conflicts"`
	DetectionsRun          int64 `json:"detections_run" yaml:"detections_run"`
}

// Detector flags conflicting field changes.
type Detector struct {
	mu     sync.RWMutex
	cfg    Config
	stats  Statistics
	logger *logging.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithConfig replaces the default detection config.
func WithConfig(cfg Config) Option {
	return func(d *Detector) { d.cfg = cfg }
}

// WithLogger sets the logger used by the detector.
func WithLogger(l *logging.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l.WithComponent(logging.ComponentConflict)
		}
	}
}

// NewDetector creates a Detector with DefaultConfig unless overridden.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		cfg:    DefaultConfig(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the active configuration.
func (d *Detector) Config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Configure validates cfg and makes it the active configuration.
func (d *Detector) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	return nil
}

// DetectConflicts classifies the modified entries of a diff. The source and
// target collections fill in record versions a modification does not carry.
func (d *Detector) DetectConflicts(source, target []record.Record, modified []diff.Modification) Result {
	cfg := d.Config()

	var sourceIndex, targetIndex map[string]record.Record

	res := NoConflicts()
	for _, m := range modified {
		if len(m.Changes) == 0 {
			continue
		}

		rc := d.classify(m, cfg)
		if len(rc.Items) == 0 {
			continue
		}

		if rc.Source == nil {
			if sourceIndex == nil {
				sourceIndex = record.Sanitize(source).Index()
			}
			rc.Source = sourceIndex[rc.ID]
		}
		if rc.Target == nil {
			if targetIndex == nil {
				targetIndex = record.Sanitize(target).Index()
			}
			rc.Target = targetIndex[rc.ID]
		}

		res.Records = append(res.Records, rc)
		res.Items = append(res.Items, rc.Items...)
		res.Severity = Max(res.Severity, rc.Severity)
	}
	res.HasConflicts = len(res.Items) > 0

	d.mu.Lock()
	d.stats.DetectionsRun++
	d.stats.TotalConflictsDetected += int64(len(res.Items))
	d.mu.Unlock()

	if res.HasConflicts {
		d.logger.InfoContext(context.Background(), "conflicts detected",
			slog.Int("records", len(res.Records)),
			slog.Int("items", len(res.Items)),
			slog.String("severity", string(res.Severity)),
			slog.String("level", string(cfg.Level)),
		)
	}
	return res
}

func (d *Detector) classify(m diff.Modification, cfg Config) RecordConflict {
	fields := m.ChangedFields()

	highFields := 0
	for _, f := range fields {
		if m.Changes[f].Severity == diff.SeverityHigh {
			highFields++
		}
	}
	multiField := cfg.Level == LevelEnhanced && len(fields) >= cfg.MultiFieldThreshold
	critical := highFields >= criticalHighFields ||
		(highFields > 0 && len(fields) >= cfg.MultiFieldThreshold)

	rc := RecordConflict{
		ID:            m.ID,
		Source:        m.Source,
		Target:        m.Target,
		Changes:       m.Changes,
		ChangedFields: fields,
		Severity:      SeverityNone,
	}
	for _, f := range fields {
		change := m.Changes[f]
		if change.Severity != diff.SeverityHigh && !multiField {
			continue
		}
		sev := fromFieldSeverity(change.Severity)
		if critical {
			sev = SeverityCritical
		}
		rc.Items = append(rc.Items, Item{
			ID:            m.ID,
			Field:         f,
			SourceValue:   change.To,
			TargetValue:   change.From,
			FieldSeverity: change.Severity,
			Severity:      sev,
		})
		rc.Severity = Max(rc.Severity, sev)
	}
	return rc
}

// MarkResolved records n conflicts as resolved.
func (d *Detector) MarkResolved(n int) {
	if n <= 0 {
		return
	}
	d.mu.Lock()
	d.stats.ResolvedConflicts += int64(n)
	d.mu.Unlock()
}

// Statistics returns a snapshot of the detector counters.
func (d *Detector) Statistics() Statistics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// ResetStatistics zeroes the detector counters.
func (d *Detector) ResetStatistics() {
	d.mu.Lock()
	d.stats = Statistics{}
	d.mu.Unlock()
}
