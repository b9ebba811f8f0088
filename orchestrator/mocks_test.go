package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/diff"
	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/record"
	"github.com/c0deZ3R0/go-sync-engine/retry"
)

// fakeCoordinator records calls and fails the first len(syncErrs) SyncData
// calls with the given errors (nil entries succeed).
type fakeCoordinator struct {
	mu            sync.Mutex
	syncCalls     int
	conflictCalls int
	batches       [][]Change
	syncErrs      []error
	conflictOut   ConflictOutcome
	conflictErr   error
	delay         time.Duration
	resets        int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeCoordinator) SyncData(ctx context.Context, changes []Change, opts Options) (SyncOutcome, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	call := f.syncCalls
	f.syncCalls++
	f.batches = append(f.batches, changes)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if call < len(f.syncErrs) && f.syncErrs[call] != nil {
		return SyncOutcome{}, f.syncErrs[call]
	}
	return SyncOutcome{Success: true, Synced: len(changes)}, nil
}

func (f *fakeCoordinator) HandleConflicts(ctx context.Context, conflicts conflict.Result) (ConflictOutcome, error) {
	f.mu.Lock()
	f.conflictCalls++
	f.mu.Unlock()
	if f.conflictErr != nil {
		return ConflictOutcome{}, f.conflictErr
	}
	return f.conflictOut, nil
}

func (f *fakeCoordinator) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncCalls, f.conflictCalls
}

// legacyCoordinator only exposes the older reset method name.
type legacyCoordinator struct {
	NoopCoordinator
	cleared int
}

func (l *legacyCoordinator) ClearStatistics() { l.cleared++ }

// mockCoordinator is a testify mock of SyncCoordinator.
type mockCoordinator struct {
	mock.Mock
}

func (m *mockCoordinator) SyncData(ctx context.Context, changes []Change, opts Options) (SyncOutcome, error) {
	args := m.Called(ctx, changes, opts)
	return args.Get(0).(SyncOutcome), args.Error(1)
}

func (m *mockCoordinator) HandleConflicts(ctx context.Context, conflicts conflict.Result) (ConflictOutcome, error) {
	args := m.Called(ctx, conflicts)
	return args.Get(0).(ConflictOutcome), args.Error(1)
}

// panickingComparison blows up while comparing.
type panickingComparison struct{}

func (panickingComparison) CalculateDifferences(source, target []record.Record) diff.Result {
	panic("comparison exploded")
}
func (panickingComparison) Configure(diff.Config) error { return nil }
func (panickingComparison) Statistics() diff.Statistics { return diff.Statistics{} }

// panickingConflicts blows up while detecting conflicts.
type panickingConflicts struct{}

func (panickingConflicts) DetectConflicts(source, target []record.Record, modified []diff.Modification) conflict.Result {
	panic(fmt.Errorf("detector exploded"))
}
func (panickingConflicts) Configure(conflict.Config) error { return nil }
func (panickingConflicts) MarkResolved(int)                {}
func (panickingConflicts) Statistics() conflict.Statistics { return conflict.Statistics{} }

// countingMetrics counts collector calls.
type countingMetrics struct {
	NoOpMetricsCollector
	mu        sync.Mutex
	results   map[bool]int
	retries   int
	conflicts int
	batchSize int
}

func (c *countingMetrics) RecordSyncResult(success bool, stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = map[bool]int{}
	}
	c.results[success]++
}

func (c *countingMetrics) RecordRetry(success bool) {
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

func (c *countingMetrics) RecordConflicts(count int, severity string) {
	c.mu.Lock()
	c.conflicts += count
	c.mu.Unlock()
}

func (c *countingMetrics) RecordBatchSize(size int) {
	c.mu.Lock()
	c.batchSize = size
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = retry.Config{MaxRetryAttempts: 10, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	return cfg
}

func newTestOrchestrator(t *testing.T, c SyncCoordinator, mutate ...func(*Config)) *Orchestrator {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	o, err := NewBuilder().
		WithCoordinator(c).
		WithConfig(cfg).
		WithLogger(logging.Discard()).
		Build()
	require.NoError(t, err)
	return o
}

func addedRecords(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.Record{"id": fmt.Sprintf("r-%03d", i), "title": fmt.Sprintf("item %d", i), "progress": i % 100}
	}
	return out
}
