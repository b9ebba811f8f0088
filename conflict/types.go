package conflict

import (
	"fmt"
	"strings"

	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// Level selects the detection policy.
type Level string

const (
	// LevelStandard flags every high-severity field change.
	LevelStandard Level = "STANDARD"
	// LevelEnhanced also flags every change of a record with several
	// simultaneously changed fields.
	LevelEnhanced Level = "ENHANCED"
)

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelStandard:
		return LevelStandard, nil
	case LevelEnhanced:
		return LevelEnhanced, nil
	default:
		return "", fmt.Errorf("unknown conflict detection level %q", s)
	}
}

// Severity is the aggregate conflict scale.
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeveritySevere   Severity = "SEVERE"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities from NONE (0) to CRITICAL (4).
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s ranks at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Max returns the higher of two severities.
func Max(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// fromFieldSeverity maps a field level severity onto the aggregate scale.
func fromFieldSeverity(s diff.Severity) Severity {
	switch s {
	case diff.SeverityHigh:
		return SeveritySevere
	case diff.SeverityMedium:
		return SeverityModerate
	case diff.SeverityLow:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Item is one conflicting field of a modified record.
type Item struct {
	ID            string        `json:"id" yaml:"id"`
	Field         string        `json:"field" yaml:"field"`
	SourceValue   any           `json:"source_value" yaml:"source_value"`
	TargetValue   any           `json:"target_value" yaml:"target_value"`
	FieldSeverity diff.Severity `json:"field_severity" yaml:"field_severity"`
	Severity      Severity      `json:"severity" yaml:"severity"`
}

// RecordConflict groups the conflicting items of one record together with
// both versions, the shape resolvers work on.
type RecordConflict struct {
	ID            string                      `json:"id" yaml:"id"`
	Source        record.Record               `json:"source" yaml:"source"`
	Target        record.Record               `json:"target" yaml:"target"`
	Changes       map[string]diff.FieldChange `json:"changes" yaml:"changes"`
	ChangedFields []string                    `json:"changed_fields" yaml:"changed_fields"`
	Items         []Item                      `json:"items" yaml:"items"`
	Severity      Severity                    `json:"severity" yaml:"severity"`
}

// Result is the aggregate conflict outcome of one detection run.
// HasConflicts is true exactly when Items is non-empty.
type Result struct {
	HasConflicts bool             `json:"has_conflicts" yaml:"has_conflicts"`
	Items        []Item           `json:"items" yaml:"items"`
	Severity     Severity         `json:"severity" yaml:"severity"`
	Records      []RecordConflict `json:"records" yaml:"records"`
}

// Count is the number of conflicting items.
func (r Result) Count() int {
	return len(r.Items)
}

// NoConflicts is the empty result.
func NoConflicts() Result {
	return Result{Items: []Item{}, Severity: SeverityNone}
}
