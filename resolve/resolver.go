// Package resolve decides which version of a conflicting record survives.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// Decision names the outcome of a resolution.
type Decision string

const (
	DecisionKeepSource   Decision = "keep_source"
	DecisionKeepTarget   Decision = "keep_target"
	DecisionMerge        Decision = "merge"
	DecisionManualReview Decision = "manual_review"
	DecisionNoop         Decision = "noop"
)

// DefaultTimestampField is the field LastWriteWins compares.
const DefaultTimestampField = "lastUpdated"

// Resolution captures the decision and the record to write, if any.
type Resolution struct {
	Decision Decision      `json:"decision" yaml:"decision"`
	Record   record.Record `json:"record,omitempty" yaml:"record,omitempty"`
	Reasons  []string      `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// Resolved reports whether the conflict was settled without a human.
func (r Resolution) Resolved() bool {
	return r.Decision != DecisionManualReview
}

// Resolver is the strategy interface for conflict resolution.
type Resolver interface {
	Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, c conflict.RecordConflict) (Resolution, error)

func (f ResolverFunc) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	return f(ctx, c)
}

var (
	_ Resolver = SourceWins{}
	_ Resolver = TargetWins{}
	_ Resolver = (*LastWriteWins)(nil)
	_ Resolver = (*Merge)(nil)
	_ Resolver = (*ManualReview)(nil)
)

// SourceWins always keeps the incoming source version.
type SourceWins struct{}

func (SourceWins) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	if c.Source == nil {
		return Resolution{Decision: DecisionNoop, Reasons: []string{"source missing"}}, nil
	}
	return Resolution{Decision: DecisionKeepSource, Record: c.Source.Clone(), Reasons: []string{"source wins"}}, nil
}

// TargetWins keeps whatever the target already holds.
type TargetWins struct{}

func (TargetWins) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	if c.Target == nil {
		return Resolution{Decision: DecisionNoop, Reasons: []string{"target missing"}}, nil
	}
	return Resolution{Decision: DecisionKeepTarget, Record: c.Target.Clone(), Reasons: []string{"target wins"}}, nil
}

// LastWriteWins keeps the version with the later timestamp. Timestamps may
// be time.Time values, parseable strings or unix seconds. Equal timestamps
// prefer the source.
type LastWriteWins struct {
	// Field holds the timestamp; DefaultTimestampField when empty.
	Field string
}

func (r *LastWriteWins) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	field := r.Field
	if field == "" {
		field = DefaultTimestampField
	}

	src, srcOK := timestamp(c.Source, field)
	dst, dstOK := timestamp(c.Target, field)

	switch {
	case !srcOK && !dstOK:
		return Resolution{Decision: DecisionNoop, Reasons: []string{"no timestamps"}}, nil
	case !dstOK:
		return Resolution{Decision: DecisionKeepSource, Record: c.Source.Clone(), Reasons: []string{"target missing " + field}}, nil
	case !srcOK:
		return Resolution{Decision: DecisionKeepTarget, Record: c.Target.Clone(), Reasons: []string{"source missing " + field}}, nil
	case dst.After(src):
		return Resolution{Decision: DecisionKeepTarget, Record: c.Target.Clone(), Reasons: []string{"target newer"}}, nil
	case src.After(dst):
		return Resolution{Decision: DecisionKeepSource, Record: c.Source.Clone(), Reasons: []string{"source newer"}}, nil
	default:
		return Resolution{Decision: DecisionKeepSource, Record: c.Source.Clone(), Reasons: []string{"equal timestamps, prefer source"}}, nil
	}
}

func timestamp(r record.Record, field string) (time.Time, bool) {
	v, ok := r.Get(field)
	if !ok {
		return time.Time{}, false
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// Merge starts from the source version and keeps the target value for the
// listed fields.
type Merge struct {
	KeepTarget []string
}

func (r *Merge) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	if c.Source == nil || c.Target == nil {
		return SourceWins{}.Resolve(ctx, c)
	}
	merged := c.Source.Clone()
	kept := 0
	for _, f := range r.KeepTarget {
		if v, ok := c.Target[f]; ok {
			merged[f] = v
			kept++
		}
	}
	return Resolution{
		Decision: DecisionMerge,
		Record:   merged,
		Reasons:  []string{fmt.Sprintf("merged, %d target fields kept", kept)},
	}, nil
}

// ManualReview parks the conflict for a human.
type ManualReview struct{ Reason string }

func (r *ManualReview) Resolve(ctx context.Context, c conflict.RecordConflict) (Resolution, error) {
	reasons := []string{"manual review required"}
	if r.Reason != "" {
		reasons = append(reasons, r.Reason)
	}
	return Resolution{Decision: DecisionManualReview, Reasons: reasons}, nil
}

// ByName returns a built-in resolver: default, source, target,
// last-write-wins or manual.
func ByName(name string) (Resolver, error) {
	switch name {
	case "", "default":
		return Default(), nil
	case "source", "source-wins":
		return SourceWins{}, nil
	case "target", "target-wins":
		return TargetWins{}, nil
	case "lww", "last-write-wins":
		return &LastWriteWins{}, nil
	case "manual", "manual-review":
		return &ManualReview{}, nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", name)
	}
}
