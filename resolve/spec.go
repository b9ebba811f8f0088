package resolve

import (
	"slices"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
)

// Spec is a predicate used to match conflicts to rules. Combinators build
// complex match logic from small pieces.
type Spec func(conflict.RecordConflict) bool

// And matches when every spec matches. A nil spec never matches.
func And(specs ...Spec) Spec {
	return func(c conflict.RecordConflict) bool {
		if len(specs) == 0 {
			return false
		}
		for _, s := range specs {
			if s == nil || !s(c) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one spec matches.
func Or(specs ...Spec) Spec {
	return func(c conflict.RecordConflict) bool {
		for _, s := range specs {
			if s != nil && s(c) {
				return true
			}
		}
		return false
	}
}

// Not negates a spec.
func Not(a Spec) Spec { return func(c conflict.RecordConflict) bool { return a == nil || !a(c) } }

// Always matches everything.
func Always() Spec { return func(conflict.RecordConflict) bool { return true } }

// FieldChanged matches when any of the record's conflicting fields is in
// the set.
func FieldChanged(fields ...string) Spec {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return func(c conflict.RecordConflict) bool {
		for _, item := range c.Items {
			if _, ok := set[item.Field]; ok {
				return true
			}
		}
		return false
	}
}

// SeverityAtLeast matches conflicts whose record severity ranks at or
// above s.
func SeverityAtLeast(s conflict.Severity) Spec {
	return func(c conflict.RecordConflict) bool { return c.Severity.AtLeast(s) }
}

// IDIn matches the given record ids.
func IDIn(ids ...string) Spec {
	return func(c conflict.RecordConflict) bool { return slices.Contains(ids, c.ID) }
}
