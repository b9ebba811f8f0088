package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/c0deZ3R0/go-sync-engine/logging"
	"github.com/c0deZ3R0/go-sync-engine/storage/sqlstore"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	base := []string{"syncctl", "--no-color", "--log-level", "error"}
	err := Run(ctx, append(base, args...), &out)
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func storeConfig(t *testing.T, dir, resolver string) string {
	t.Helper()
	return writeFile(t, dir, "engine.yaml", `
store:
  driver: sqlite
  dsn: "`+filepath.Join(dir, "sync.db")+`"
  resolver: `+resolver+`
`)
}

const (
	diffSource = `[{"id":"1","title":"A"},{"id":"2","title":"B","progress":10}]`
	diffTarget = `[{"id":"2","title":"B","progress":90},{"id":"3","title":"C"}]`
)

func TestDiffCommand_Text(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "source.json", diffSource)
	dst := writeFile(t, dir, "target.json", diffTarget)

	out, err := run(t, context.Background(), "diff", "--source", src, "--target", dst)
	require.NoError(t, err)

	assert.Contains(t, out, "added 1  modified 1  deleted 1  unchanged 0")
	assert.Contains(t, out, "+ 1")
	assert.Contains(t, out, "~ 2 progress")
	assert.Contains(t, out, "- 3")
	assert.Contains(t, out, "1 conflicts")
	assert.Contains(t, out, "2.progress: 90 -> 10")
}

func TestDiffCommand_JSONAndYAMLInput(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "source.yaml", `
- id: "1"
  title: A
- id: "2"
  title: B
  progress: 10
`)
	dst := writeFile(t, dir, "target.json", diffTarget)

	out, err := run(t, context.Background(), "diff", "-s", src, "-t", dst, "--format", "json")
	require.NoError(t, err)

	var got diffOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Differences.Summary.AddedCount)
	assert.Equal(t, 1, got.Differences.Summary.ModifiedCount)
	assert.Equal(t, 1, got.Differences.Summary.DeletedCount)
	assert.True(t, got.Conflicts.HasConflicts)
	require.Len(t, got.Conflicts.Items, 1)
	assert.Equal(t, "progress", got.Conflicts.Items[0].Field)
}

func TestDiffCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "source.json", diffSource)
	notList := writeFile(t, dir, "object.json", `{"id":"1"}`)

	_, err := run(t, context.Background(), "diff", "--source", src, "--format", "xml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, err = run(t, context.Background(), "diff", "--source", notList)
	assert.ErrorContains(t, err, "not a list of records")

	_, err = run(t, context.Background(), "diff", "--source", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "source.json", diffSource)
	dst := writeFile(t, dir, "target.json", `[]`)

	out, err := run(t, context.Background(), "validate", "--source", src)
	assert.ErrorContains(t, err, "validation failed")
	assert.Contains(t, out, "target data is required")

	out, err = run(t, context.Background(), "validate", "--source", src, "--target", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "target data is empty")
	assert.Contains(t, out, "ready to sync")
}

func TestTuneCommand(t *testing.T) {
	out, err := run(t, context.Background(), "tune", "--avg-time", "100ms", "--conflict-rate", "0.05")
	require.NoError(t, err)
	assert.Contains(t, out, "batch size 100 -> 150")
	assert.Contains(t, out, "parallel false -> true")

	out, err = run(t, context.Background(), "tune", "--avg-time", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "batch size 100 -> 70")
	assert.Contains(t, out, "conflict level STANDARD -> ENHANCED")

	_, err = run(t, context.Background(), "tune", "--conflict-rate", "2")
	assert.ErrorContains(t, err, "between 0 and 1")
}

func TestSyncCommand_DryRun(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "source.json", diffSource)

	out, err := run(t, context.Background(), "sync", "--source", src, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "synchronized 0 records")
	assert.Contains(t, out, "changes +2 ~0 -0 =0")
	assert.NoFileExists(t, "sync.db")
}

func TestSyncCommand_SQLiteStore(t *testing.T) {
	dir := t.TempDir()
	cfg := storeConfig(t, dir, "manual")
	first := writeFile(t, dir, "first.json", `[{"id":"1","title":"A","progress":10},{"id":"2","title":"B","progress":0}]`)
	second := writeFile(t, dir, "second.json", `[{"id":"1","title":"A","progress":80},{"id":"2","title":"B","progress":0}]`)
	ctx := context.Background()

	out, err := run(t, ctx, "-c", cfg, "sync", "--source", first)
	require.NoError(t, err)
	assert.Contains(t, out, "synchronized 2 records")

	out, err = run(t, ctx, "-c", cfg, "conflicts")
	require.NoError(t, err)
	assert.Contains(t, out, "no pending conflicts")

	out, err = run(t, ctx, "-c", cfg, "sync", "--source", second, "--report", "json")
	require.NoError(t, err)
	var report struct {
		Summary struct {
			Success             bool `json:"success"`
			Conflicts           int  `json:"conflicts"`
			UnresolvedConflicts int  `json:"unresolved_conflicts"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Summary.Success)
	assert.Equal(t, 1, report.Summary.Conflicts)
	assert.Equal(t, 1, report.Summary.UnresolvedConflicts)

	out, err = run(t, ctx, "-c", cfg, "conflicts", "--format", "json")
	require.NoError(t, err)
	var pending []sqlstore.PendingConflict
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "1", pending[0].RecordID)
	assert.Equal(t, sqlstore.StatusPending, pending[0].Status)

	out, err = run(t, ctx, "-c", cfg, "conflicts")
	require.NoError(t, err)
	assert.Contains(t, out, "#1")
}

func TestConflictsCommand_NoStore(t *testing.T) {
	t.Setenv("SYNCENGINE_STORE_DRIVER", "none")

	_, err := run(t, context.Background(), "conflicts")
	assert.ErrorIs(t, err, errNoStore)
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bad.yaml", "batch_size: 0\n")

	_, err := run(t, context.Background(), "-c", cfg, "tune")
	assert.ErrorContains(t, err, "failed to load config")
}

func TestWatchCommand_StopsWithContext(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "source.json", diffSource)
	cfg := writeFile(t, dir, "engine.yaml", `
store:
  driver: none
schedule:
  sync: "@every 1s"
  tune: ""
`)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	out, err := run(t, ctx, "-c", cfg, "watch", "--source", src, "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "watching")
	assert.Contains(t, out, "/metrics")
}

func TestLogged(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog []string
	}{
		{"success", nil, []string{"operation=sync", "component=cli", "operation completed"}},
		{"failure", errors.New("store offline"), []string{"operation=sync", "operation failed", "store offline"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logging.Init(logging.Config{Level: "debug", Format: "text", Output: &buf})
			t.Cleanup(func() { logging.Init(logging.DefaultConfig) })

			action := logged("sync", func(context.Context, *cli.Command) error { return tt.err })
			err := action(context.Background(), &cli.Command{})

			assert.Equal(t, tt.err, err)
			for _, want := range tt.wantLog {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
