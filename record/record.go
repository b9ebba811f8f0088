// Package record defines the id-keyed entity the engine synchronizes.
package record

import (
	"strings"

	"github.com/spf13/cast"
)

// IDField is the key every record must carry.
const IDField = "id"

// Record is a single synchronizable entity. Arbitrary fields are allowed;
// only IDField is required.
type Record map[string]any

// ID returns the record id normalized to a string, and false when the
// record has no usable id.
func (r Record) ID() (string, bool) {
	if r == nil {
		return "", false
	}
	raw, ok := r[IDField]
	if !ok || raw == nil {
		return "", false
	}
	id, err := cast.ToStringE(raw)
	if err != nil {
		return "", false
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}

// Get returns the value of field and whether it is present with a non-nil value.
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Collection is an ordered list of records.
type Collection []Record

// Sanitize drops nil entries and entries without a usable id. When an id
// appears more than once the first occurrence wins.
func Sanitize(in []Record) Collection {
	out := make(Collection, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		id, ok := r.ID()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Index builds an id to record lookup for c. c is expected to be sanitized.
func (c Collection) Index() map[string]Record {
	idx := make(map[string]Record, len(c))
	for _, r := range c {
		if id, ok := r.ID(); ok {
			idx[id] = r
		}
	}
	return idx
}

// IDs returns the ids of c in order, skipping records without one.
func (c Collection) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, r := range c {
		if id, ok := r.ID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// FromAny converts a loosely typed value into records. It accepts
// []Record, Collection, []map[string]any and []any whose elements are
// maps; anything else reports false. Non-map elements of a []any are
// dropped, mirroring Sanitize.
func FromAny(v any) ([]Record, bool) {
	switch t := v.(type) {
	case []Record:
		return t, true
	case Collection:
		return t, true
	case []map[string]any:
		out := make([]Record, len(t))
		for i, m := range t {
			out[i] = Record(m)
		}
		return out, true
	case []any:
		out := make([]Record, 0, len(t))
		for _, e := range t {
			switch m := e.(type) {
			case Record:
				out = append(out, m)
			case map[string]any:
				out = append(out, Record(m))
			}
		}
		return out, true
	default:
		return nil, false
	}
}
