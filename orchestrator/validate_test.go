package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

func TestValidateSyncPrerequisites(t *testing.T) {
	o := newTestOrchestrator(t, NoopCoordinator{})

	t.Run("invalid source and missing source key", func(t *testing.T) {
		res := o.ValidateSyncPrerequisites(Request{
			SourceData: "invalid",
			TargetData: []any{},
			Options:    &Options{},
		})

		assert.False(t, res.IsValid)
		require.Len(t, res.Errors, 2)
		assert.Contains(t, res.Errors[0], "source data must be a record collection")
		assert.Equal(t, "options must include a source identifier", res.Errors[1])
		assert.Contains(t, res.Warnings, "target data is empty")
	})

	t.Run("missing everything", func(t *testing.T) {
		res := o.ValidateSyncPrerequisites(Request{})

		assert.False(t, res.IsValid)
		assert.Equal(t, []string{
			"source data is required",
			"target data is required",
			"options are required",
		}, res.Errors)
	})

	t.Run("empty collections only warn", func(t *testing.T) {
		res := o.ValidateSyncPrerequisites(Request{
			SourceData: []record.Record{},
			TargetData: []map[string]any{},
			Options:    &Options{Source: "local"},
		})

		assert.True(t, res.IsValid)
		assert.Empty(t, res.Errors)
		assert.Equal(t, []string{"source data is empty", "target data is empty"}, res.Warnings)
	})

	t.Run("records without id warn", func(t *testing.T) {
		res := o.ValidateSyncPrerequisites(Request{
			SourceData: []any{map[string]any{"id": "1"}, map[string]any{"title": "orphan"}},
			TargetData: []record.Record{{"id": "1"}},
			Options:    &Options{Source: "local"},
		})

		assert.True(t, res.IsValid)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "1 source records")
	})
}

func TestRun(t *testing.T) {
	coord := &fakeCoordinator{}
	o := newTestOrchestrator(t, coord)

	_, err := o.Run(context.Background(), Request{SourceData: "invalid"})
	require.Error(t, err)
	assert.Equal(t, syncErrors.KindValidation, syncErrors.KindOf(err))
	syncCalls, _ := coord.calls()
	assert.Zero(t, syncCalls)
	assert.Zero(t, o.Statistics().TotalOrchestrations)

	res, err := o.Run(context.Background(), Request{
		SourceData: []any{map[string]any{"id": "1", "title": "x"}},
		TargetData: []any{},
		Options:    &Options{Source: "local"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Synchronized)
}
