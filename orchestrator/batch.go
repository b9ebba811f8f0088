package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// BatchItem is one independent orchestration of OrchestrateBatch.
type BatchItem struct {
	Source  []record.Record
	Target  []record.Record
	Options Options
}

// OrchestrateBatch runs independent orchestrations with at most
// MaxConcurrentJobs in flight. Results are in item order. Items not started
// before ctx is cancelled get a failed result without being orchestrated.
func (o *Orchestrator) OrchestrateBatch(ctx context.Context, items []BatchItem) []*SyncResult {
	results := make([]*SyncResult, len(items))

	var g errgroup.Group
	g.SetLimit(o.Config().MaxConcurrentJobs)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i] = &SyncResult{
				Timestamp: time.Now(),
				Stage:     syncErrors.StageUnknown,
				Err:       err,
				Error:     err.Error(),
			}
			continue
		}
		g.Go(func() error {
			results[i] = o.OrchestrateSync(ctx, item.Source, item.Target, item.Options)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
