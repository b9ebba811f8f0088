package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
)

func fastConfig(max int) Config {
	return Config{MaxRetryAttempts: max, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func failing(err error) Operation {
	return func(context.Context) (any, error) { return nil, err }
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"plain error", fmt.Errorf("connection reset"), true},
		{"permanent", backoff.Permanent(fmt.Errorf("bad request")), false},
		{"wrapped permanent", fmt.Errorf("call: %w", backoff.Permanent(fmt.Errorf("x"))), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), false},
		{"retryable sync error", syncErrors.NewSynchronizationError(syncErrors.OpSync, fmt.Errorf("timeout")), true},
		{"validation error", syncErrors.NewValidationError(syncErrors.OpValidate, fmt.Errorf("bad")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCanRetry_StopsAtMaxAttempts(t *testing.T) {
	c := NewCoordinator(WithConfig(fastConfig(3)))
	ctx := context.Background()
	transient := fmt.Errorf("transient")

	for i := 1; i <= 3; i++ {
		require.True(t, c.CanRetry("job", transient), "attempt %d", i)
		out := c.ExecuteRetry(ctx, "job", failing(transient))
		assert.False(t, out.Success)
		assert.Equal(t, i, out.RetryCount)
	}

	assert.False(t, c.CanRetry("job", transient))

	out := c.ExecuteRetry(ctx, "job", func(context.Context) (any, error) {
		t.Fatal("operation must not run once attempts are exhausted")
		return nil, nil
	})
	assert.Equal(t, syncErrors.KindRetryExhausted, syncErrors.KindOf(out.Err))
	assert.ErrorIs(t, out.Err, transient)
	assert.Equal(t, 3, out.RetryCount)
}

func TestCanRetry_NonRetryableError(t *testing.T) {
	c := NewCoordinator()
	assert.False(t, c.CanRetry("job", backoff.Permanent(fmt.Errorf("nope"))))
	assert.True(t, c.CanRetry("job", fmt.Errorf("flaky")))

	none := NewCoordinator(WithConfig(Config{MaxRetryAttempts: 0}))
	assert.False(t, none.CanRetry("job", fmt.Errorf("flaky")))
}

func TestExecuteRetry_Success(t *testing.T) {
	c := NewCoordinator(WithConfig(fastConfig(3)))

	out := c.ExecuteRetry(context.Background(), "job", func(context.Context) (any, error) {
		return "done", nil
	})

	assert.True(t, out.Success)
	assert.Equal(t, "done", out.Result)
	assert.Equal(t, 1, out.RetryCount)
	assert.NoError(t, out.Err)

	_, tracked := c.State("job")
	assert.False(t, tracked, "successful jobs are no longer tracked")
}

func TestExecuteRetry_BackoffDoubles(t *testing.T) {
	c := NewCoordinator(WithConfig(fastConfig(4)))
	ctx := context.Background()

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}
	for i, d := range want {
		c.ExecuteRetry(ctx, "job", failing(fmt.Errorf("fail %d", i)))
		st, ok := c.State("job")
		require.True(t, ok)
		assert.Equal(t, i+1, st.Attempts)
		assert.Equal(t, d, st.NextBackoff, "attempt %d", i+1)
		assert.EqualError(t, st.LastError, fmt.Sprintf("fail %d", i))
	}
}

func TestExecuteRetry_HonorsContext(t *testing.T) {
	c := NewCoordinator(WithConfig(Config{MaxRetryAttempts: 3, BaseBackoff: time.Hour, MaxBackoff: time.Hour}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	out := c.ExecuteRetry(ctx, "job", func(context.Context) (any, error) {
		called = true
		return nil, nil
	})

	assert.False(t, called)
	assert.False(t, out.Success)
	assert.True(t, errors.Is(out.Err, context.Canceled))
}

func TestJobsAreIsolated(t *testing.T) {
	c := NewCoordinator(WithConfig(fastConfig(1)))
	ctx := context.Background()

	c.ExecuteRetry(ctx, "a", failing(fmt.Errorf("x")))
	assert.False(t, c.CanRetry("a", nil))
	assert.True(t, c.CanRetry("b", nil))

	c.Forget("a")
	assert.True(t, c.CanRetry("a", nil))
}

func TestRetryStatistics(t *testing.T) {
	c := NewCoordinator(WithConfig(fastConfig(5)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jobID := fmt.Sprintf("job-%d", i)
			if i%2 == 0 {
				c.ExecuteRetry(ctx, jobID, failing(fmt.Errorf("fail")))
				return
			}
			c.ExecuteRetry(ctx, jobID, func(context.Context) (any, error) { return i, nil })
		}(i)
	}
	wg.Wait()

	stats := c.RetryStatistics()
	assert.Equal(t, int64(10), stats.TotalRetries)
	assert.Equal(t, int64(5), stats.SuccessfulRetries)
	assert.Equal(t, int64(5), stats.FailedRetries)
	assert.Equal(t, 5, stats.ActiveJobs)

	c.ResetStatistics()
	stats = c.RetryStatistics()
	assert.Zero(t, stats.TotalRetries)
	assert.Equal(t, 5, stats.ActiveJobs)
}

func TestConfigure(t *testing.T) {
	c := NewCoordinator()
	assert.Error(t, c.Configure(Config{MaxRetryAttempts: -1}))
	assert.Error(t, c.Configure(Config{MaxRetryAttempts: 1, BaseBackoff: time.Second, MaxBackoff: time.Millisecond}))
	require.NoError(t, c.Configure(fastConfig(7)))
	assert.Equal(t, 7, c.Config().MaxRetryAttempts)
}
