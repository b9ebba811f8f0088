package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

func rc(source, target record.Record) conflict.RecordConflict {
	return conflict.RecordConflict{ID: "1", Source: source, Target: target}
}

func TestLastWriteWins(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	tests := []struct {
		name     string
		c        conflict.RecordConflict
		decision Decision
		title    any
	}{
		{
			name:     "source newer",
			c:        rc(record.Record{"id": "1", "title": "s", "lastUpdated": newer}, record.Record{"id": "1", "title": "t", "lastUpdated": older}),
			decision: DecisionKeepSource,
			title:    "s",
		},
		{
			name:     "target newer",
			c:        rc(record.Record{"id": "1", "title": "s", "lastUpdated": older}, record.Record{"id": "1", "title": "t", "lastUpdated": newer}),
			decision: DecisionKeepTarget,
			title:    "t",
		},
		{
			name:     "string timestamps",
			c:        rc(record.Record{"id": "1", "title": "s", "lastUpdated": "2024-01-02T00:00:00Z"}, record.Record{"id": "1", "title": "t", "lastUpdated": "2024-01-01T00:00:00Z"}),
			decision: DecisionKeepSource,
			title:    "s",
		},
		{
			name:     "equal prefers source",
			c:        rc(record.Record{"id": "1", "title": "s", "lastUpdated": older}, record.Record{"id": "1", "title": "t", "lastUpdated": older}),
			decision: DecisionKeepSource,
			title:    "s",
		},
		{
			name:     "target missing timestamp",
			c:        rc(record.Record{"id": "1", "title": "s", "lastUpdated": older}, record.Record{"id": "1", "title": "t"}),
			decision: DecisionKeepSource,
			title:    "s",
		},
		{
			name:     "source missing timestamp",
			c:        rc(record.Record{"id": "1", "title": "s"}, record.Record{"id": "1", "title": "t", "lastUpdated": older}),
			decision: DecisionKeepTarget,
			title:    "t",
		},
		{
			name:     "no timestamps",
			c:        rc(record.Record{"id": "1", "title": "s"}, record.Record{"id": "1", "title": "t"}),
			decision: DecisionNoop,
		},
	}

	r := &LastWriteWins{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.decision, res.Decision)
			if tt.title == nil {
				assert.Nil(t, res.Record)
				return
			}
			assert.Equal(t, tt.title, res.Record["title"])
			assert.NotEmpty(t, res.Reasons)
		})
	}
}

func TestSourceAndTargetWins(t *testing.T) {
	c := rc(record.Record{"id": "1", "title": "s"}, record.Record{"id": "1", "title": "t"})

	res, err := SourceWins{}.Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, DecisionKeepSource, res.Decision)
	assert.Equal(t, "s", res.Record["title"])

	// the resolution owns its record
	res.Record["title"] = "changed"
	assert.Equal(t, "s", c.Source["title"])

	res, err = TargetWins{}.Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, DecisionKeepTarget, res.Decision)
	assert.Equal(t, "t", res.Record["title"])

	res, err = TargetWins{}.Resolve(context.Background(), rc(record.Record{"id": "1"}, nil))
	require.NoError(t, err)
	assert.Equal(t, DecisionNoop, res.Decision)
}

func TestMerge(t *testing.T) {
	c := rc(
		record.Record{"id": "1", "title": "s", "progress": 80},
		record.Record{"id": "1", "title": "t", "progress": 20},
	)

	res, err := (&Merge{KeepTarget: []string{"title", "missing"}}).Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, DecisionMerge, res.Decision)
	assert.Equal(t, record.Record{"id": "1", "title": "t", "progress": 80}, res.Record)
}

func TestManualReview(t *testing.T) {
	res, err := (&ManualReview{Reason: "needs eyes"}).Resolve(context.Background(), rc(nil, nil))
	require.NoError(t, err)
	assert.False(t, res.Resolved())
	assert.Equal(t, []string{"manual review required", "needs eyes"}, res.Reasons)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "default", "source", "target", "lww", "last-write-wins", "manual"} {
		r, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, r)
	}
	_, err := ByName("coin-flip")
	assert.Error(t, err)
}
