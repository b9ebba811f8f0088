package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-engine/conflict"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.DefaultConfig(), cfg)

	app, err := LoadApp("")
	require.NoError(t, err)
	assert.Equal(t, Default().Store, app.Store)
	assert.Equal(t, Default().Schedule, app.Schedule)
	assert.Equal(t, ":9090", app.MetricsAddr)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
batch_size: 150
enable_parallel_processing: true
comparison:
  compare_fields: [title, status]
  numeric_tolerance: 0.5
conflict:
  level: ENHANCED
retry:
  max_retry_attempts: 5
  base_backoff: 250ms
  max_backoff: 2s
store:
  driver: none
  resolver: source
schedule:
  sync: "@every 30s"
logging:
  level: debug
  format: text
`)

	app, err := LoadApp(path)
	require.NoError(t, err)

	assert.Equal(t, 150, app.BatchSize)
	assert.True(t, app.EnableParallelProcessing)
	assert.Equal(t, []string{"title", "status"}, app.Comparison.CompareFields)
	assert.InDelta(t, 0.5, app.Comparison.NumericTolerance, 1e-9)
	assert.Equal(t, conflict.LevelEnhanced, app.Conflict.Level)
	assert.Equal(t, 5, app.Retry.MaxRetryAttempts)
	assert.Equal(t, 250*time.Millisecond, app.Retry.BaseBackoff)
	assert.Equal(t, 2*time.Second, app.Retry.MaxBackoff)
	assert.Equal(t, DriverNone, app.Store.Driver)
	assert.Equal(t, "source", app.Store.Resolver)
	assert.Equal(t, "@every 30s", app.Schedule.Sync)
	assert.Equal(t, "@every 5m", app.Schedule.Tune)
	assert.Equal(t, "debug", app.Logging.Level)
	assert.Equal(t, "text", app.Logging.Format)

	// untouched keys keep their defaults
	assert.Equal(t, 4, app.MaxConcurrentJobs)
	assert.True(t, app.EnableConflictDetection)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "engine.json", `{"batch_size": 150, "retry": {"max_retry_attempts": 5}}`)
	t.Setenv("SYNCENGINE_BATCH_SIZE", "75")
	t.Setenv("SYNCENGINE_RETRY_MAX_BACKOFF", "10s")
	t.Setenv("SYNCENGINE_STORE_DRIVER", "postgres")
	t.Setenv("SYNCENGINE_STORE_DSN", "host=db")

	app, err := LoadApp(path)
	require.NoError(t, err)
	assert.Equal(t, 75, app.BatchSize)
	assert.Equal(t, 5, app.Retry.MaxRetryAttempts)
	assert.Equal(t, 10*time.Second, app.Retry.MaxBackoff)
	assert.Equal(t, DriverPostgres, app.Store.Driver)
	assert.Equal(t, "host=db", app.Store.DSN)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero batch size", "batch_size: 0\n"},
		{"backoff order", "retry:\n  base_backoff: 5s\n  max_backoff: 1s\n"},
		{"unknown level", "conflict:\n  level: PARANOID\n"},
		{"unknown driver", "store:\n  driver: mongo\n"},
		{"unknown resolver", "store:\n  resolver: coin-flip\n"},
		{"missing dsn", "store:\n  driver: sqlite\n  dsn: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "engine.yaml", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
