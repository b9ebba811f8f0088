package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

func newTestScheduler() *Scheduler {
	return New(WithLogger(logging.Discard()), WithSeconds())
}

func TestAdd_Validation(t *testing.T) {
	s := newTestScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("skipped", "", noop))
	assert.Empty(t, s.Entries())

	assert.Error(t, s.Add("bad", "not a spec", noop))
	assert.Error(t, s.Add("nil", "@every 1s", nil))

	require.NoError(t, s.Add("tick", "@every 1s", noop))
	assert.Error(t, s.Add("tick", "@every 2s", noop))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "tick", entries[0].Name)
	assert.Equal(t, "@every 1s", entries[0].Spec)

	s.Remove("tick")
	assert.Empty(t, s.Entries())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := newTestScheduler()
	var ok, failed atomic.Int32

	require.NoError(t, s.Add("ok", "* * * * * *", func(context.Context) error {
		ok.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("failing", "* * * * * *", func(context.Context) error {
		failed.Add(1)
		return errors.New("nope")
	}))

	s.Start()
	require.Eventually(t, func() bool { return ok.Load() >= 1 && failed.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	for _, e := range s.Entries() {
		assert.GreaterOrEqual(t, e.Runs, 1, e.Name)
		if e.Name == "failing" {
			assert.Equal(t, e.Runs, e.Failures)
		} else {
			assert.Zero(t, e.Failures)
		}
	}
}

func TestScheduler_StopCancelsJobContext(t *testing.T) {
	s := newTestScheduler()
	started := make(chan struct{})
	var cancelled atomic.Bool

	require.NoError(t, s.Add("blocking", "* * * * * *", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, cancelled.Load())
}

func TestSyncJob(t *testing.T) {
	o, err := orchestrator.New(
		orchestrator.WithCoordinator(orchestrator.NoopCoordinator{}),
		orchestrator.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	job := SyncJob(o, func(context.Context) ([]record.Record, []record.Record, error) {
		return []record.Record{{"id": "1"}}, nil, nil
	}, orchestrator.Options{Source: "scheduled"})
	require.NoError(t, job(context.Background()))
	assert.Equal(t, int64(1), o.Statistics().TotalOrchestrations)

	failing := SyncJob(o, func(context.Context) ([]record.Record, []record.Record, error) {
		return nil, nil, errors.New("source offline")
	}, orchestrator.Options{Source: "scheduled"})
	assert.ErrorContains(t, failing(context.Background()), "source offline")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, job(ctx))
}

func TestAutoTuneJob(t *testing.T) {
	o, err := orchestrator.New(
		orchestrator.WithCoordinator(orchestrator.NoopCoordinator{}),
		orchestrator.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	tune := AutoTuneJob(o)
	require.NoError(t, tune(context.Background()))
	assert.Equal(t, 100, o.Config().BatchSize)

	o.OrchestrateSync(context.Background(), []record.Record{{"id": "1"}}, nil, orchestrator.Options{Source: "x"})
	require.NoError(t, tune(context.Background()))
	assert.Equal(t, 150, o.Config().BatchSize)
}
