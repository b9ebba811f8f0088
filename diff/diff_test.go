package diff

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-engine/record"
)

func TestCalculateDifferences_ProgressRegression(t *testing.T) {
	engine := NewEngine()

	source := []record.Record{{"id": "1", "title": "A", "progress": 10}}
	target := []record.Record{{"id": "1", "title": "A", "progress": 60}}

	res := engine.CalculateDifferences(source, target)

	require.Len(t, res.Modified, 1)
	mod := res.Modified[0]
	assert.Equal(t, "1", mod.ID)
	require.Len(t, mod.Changes, 1)
	assert.Equal(t, FieldChange{From: 60, To: 10, Type: ChangeModified, Severity: SeverityHigh}, mod.Changes["progress"])
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Deleted)
	assert.Empty(t, res.Unchanged)
	assert.Equal(t, 1, res.Summary.TotalChanges)
}

func TestCalculateDifferences_TargetOnlyIsDeleted(t *testing.T) {
	engine := NewEngine()

	res := engine.CalculateDifferences(nil, []record.Record{{"id": "x", "title": "T"}})

	assert.Equal(t, []record.Record{{"id": "x", "title": "T"}}, res.Deleted)
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Modified)
	assert.Empty(t, res.Unchanged)
	assert.Equal(t, 1, res.Summary.DeletedCount)
	assert.Equal(t, 1, res.Summary.TotalChanges)
}

func TestCalculateDifferences_Idempotent(t *testing.T) {
	engine := NewEngine()
	now := time.Now()

	a := []record.Record{
		{"id": "1", "title": "One", "progress": 10, "lastUpdated": now},
		{"id": "2", "title": "Two", "progress": 55.5},
		{"id": 3, "title": "Three", "tags": []string{"x"}},
	}

	res := engine.CalculateDifferences(a, a)

	assert.Empty(t, res.Added)
	assert.Empty(t, res.Modified)
	assert.Empty(t, res.Deleted)
	assert.Equal(t, record.Collection(a).IDs(), record.Collection(res.Unchanged).IDs())
}

func TestCalculateDifferences_PartitionComplete(t *testing.T) {
	engine := NewEngine()

	source := []record.Record{
		{"id": "a", "title": "same"},
		{"id": "b", "title": "changed"},
		{"id": "c", "title": "new"},
		{"title": "no id"},
		nil,
	}
	target := []record.Record{
		{"id": "a", "title": "same"},
		{"id": "b", "title": "original"},
		{"id": "d", "title": "gone"},
		{"id": "e", "title": "gone too"},
	}

	res := engine.CalculateDifferences(source, target)

	counts := map[string]int{}
	for _, r := range res.Added {
		id, _ := r.ID()
		counts[id]++
	}
	for _, m := range res.Modified {
		counts[m.ID]++
	}
	for _, r := range res.Unchanged {
		id, _ := r.ID()
		counts[id]++
	}
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 1, counts[id], "source id %s", id)
	}

	assert.Equal(t, []string{"d", "e"}, record.Collection(res.Deleted).IDs())
	assert.Equal(t, 3, res.Summary.TotalChanges+res.Summary.UnchangedCount-res.Summary.DeletedCount)
}

func TestFieldSeverity_ProgressBoundaries(t *testing.T) {
	tests := []struct {
		from, to any
		want     Severity
	}{
		{0, 50, SeverityHigh},
		{100, 50, SeverityHigh},
		{0, 25, SeverityMedium},
		{0, 24, SeverityLow},
		{10.0, 59.5, SeverityMedium},
		{"n/a", 90, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v->%v", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, FieldSeverity("progress", tt.from, tt.to))
		})
	}

	assert.Equal(t, SeverityMedium, FieldSeverity("title", "a", "b"))
	assert.Equal(t, SeverityLow, FieldSeverity("lastUpdated", 1, 2))
	assert.Equal(t, SeverityLow, FieldSeverity("owner", "x", "y"))
}

func TestCalculateDifferences_ComparisonRules(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cfg      Config
		source   record.Record
		target   record.Record
		modified bool
	}{
		{
			name:   "both absent",
			cfg:    DefaultConfig(),
			source: record.Record{"id": "1"},
			target: record.Record{"id": "1", "title": nil},
		},
		{
			name:     "one absent",
			cfg:      DefaultConfig(),
			source:   record.Record{"id": "1", "title": "x"},
			target:   record.Record{"id": "1"},
			modified: true,
		},
		{
			name:     "case sensitive",
			cfg:      DefaultConfig(),
			source:   record.Record{"id": "1", "title": "Hello"},
			target:   record.Record{"id": "1", "title": "hello"},
			modified: true,
		},
		{
			name:   "case insensitive",
			cfg:    Config{CompareFields: []string{"title"}, CaseSensitive: false},
			source: record.Record{"id": "1", "title": "Hello"},
			target: record.Record{"id": "1", "title": "hello"},
		},
		{
			name:   "within tolerance",
			cfg:    Config{CompareFields: []string{"progress"}, CaseSensitive: true, NumericTolerance: 0.5},
			source: record.Record{"id": "1", "progress": 10.4},
			target: record.Record{"id": "1", "progress": 10},
		},
		{
			name:     "beyond tolerance",
			cfg:      Config{CompareFields: []string{"progress"}, CaseSensitive: true, NumericTolerance: 0.5},
			source:   record.Record{"id": "1", "progress": 10.6},
			target:   record.Record{"id": "1", "progress": 10},
			modified: true,
		},
		{
			name:   "mixed numeric types",
			cfg:    DefaultConfig(),
			source: record.Record{"id": "1", "progress": int64(40)},
			target: record.Record{"id": "1", "progress": 40.0},
		},
		{
			name:     "string vs number",
			cfg:      DefaultConfig(),
			source:   record.Record{"id": "1", "progress": "40"},
			target:   record.Record{"id": "1", "progress": 40},
			modified: true,
		},
		{
			name:   "equal instants in different zones",
			cfg:    DefaultConfig(),
			source: record.Record{"id": "1", "lastUpdated": t1},
			target: record.Record{"id": "1", "lastUpdated": t1.In(time.FixedZone("X", 3600))},
		},
		{
			name:   "unlisted field ignored",
			cfg:    DefaultConfig(),
			source: record.Record{"id": "1", "owner": "a"},
			target: record.Record{"id": "1", "owner": "b"},
		},
		{
			name:     "all fields when list empty",
			cfg:      Config{CaseSensitive: true},
			source:   record.Record{"id": "1", "owner": "a"},
			target:   record.Record{"id": "1", "owner": "b"},
			modified: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(WithConfig(tt.cfg))
			res := engine.CalculateDifferences([]record.Record{tt.source}, []record.Record{tt.target})
			if tt.modified {
				assert.Len(t, res.Modified, 1)
				assert.Empty(t, res.Unchanged)
			} else {
				assert.Empty(t, res.Modified)
				assert.Len(t, res.Unchanged, 1)
			}
		})
	}
}

func TestModification_ChangedFields(t *testing.T) {
	engine := NewEngine(WithConfig(Config{CaseSensitive: true}))
	res := engine.CalculateDifferences(
		[]record.Record{{"id": "1", "title": "b", "progress": 5, "owner": "z"}},
		[]record.Record{{"id": "1", "title": "a", "progress": 1, "owner": "z"}},
	)
	require.Len(t, res.Modified, 1)
	assert.Equal(t, []string{"progress", "title"}, res.Modified[0].ChangedFields())
}

func TestConfigure(t *testing.T) {
	engine := NewEngine()

	assert.Error(t, engine.Configure(Config{NumericTolerance: -1}))
	assert.Error(t, engine.Configure(Config{CompareFields: []string{""}}))

	require.NoError(t, engine.Configure(Config{CompareFields: []string{"title"}, NumericTolerance: 1}))
	assert.Equal(t, []string{"title"}, engine.Config().CompareFields)
}

func TestStatistics(t *testing.T) {
	engine := NewEngine()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.CalculateDifferences(
				[]record.Record{{"id": "1", "title": "new"}},
				[]record.Record{{"id": "1", "title": "old"}, {"id": "2"}},
			)
		}()
	}
	wg.Wait()

	stats := engine.Statistics()
	assert.Equal(t, int64(20), stats.TotalCalculations)
	assert.Equal(t, int64(40), stats.TotalChangesProcessed)
	assert.False(t, stats.LastCalculation.IsZero())

	engine.ResetStatistics()
	assert.Equal(t, Statistics{}, engine.Statistics())
}
