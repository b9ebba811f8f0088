package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/c0deZ3R0/go-sync-engine/config"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
	"github.com/c0deZ3R0/go-sync-engine/record"
	"github.com/c0deZ3R0/go-sync-engine/resolve"
	"github.com/c0deZ3R0/go-sync-engine/storage/postgres"
	"github.com/c0deZ3R0/go-sync-engine/storage/sqlite"
	"github.com/c0deZ3R0/go-sync-engine/storage/sqlstore"
)

// recordStore is a coordinator that also holds the target collection.
type recordStore interface {
	orchestrator.SyncCoordinator
	Records(ctx context.Context) ([]record.Record, error)
	PendingConflicts(ctx context.Context) ([]sqlstore.PendingConflict, error)
	Close() error
}

var errNoStore = errors.New("no store configured (store.driver is none)")

// openStore opens the store selected by the configuration.
func (e *env) openStore() (recordStore, error) {
	sc := e.app.Store
	resolver, err := resolve.ByName(sc.Resolver)
	if err != nil {
		return nil, err
	}

	switch sc.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(&sqlite.Config{
			DataSourceName: sc.DSN,
			EnableWAL:      true,
			BusyTimeout:    5 * time.Second,
			Logger:         e.logger,
			Resolver:       resolver,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.New(&postgres.Config{
			ConnectionString: sc.DSN,
			Logger:           e.logger,
			Resolver:         resolver,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverNone, "":
		return nil, errNoStore
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

func syncCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize a source collection into the configured store",
		Flags: []cli.Flag{
			sourceFlag(true),
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Compare against this file instead of the store's records",
			},
			sourceIDFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Compute the plan without writing anything",
			},
			formatFlag("report", "Print the sync report as json or yaml"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := readCollection(cmd.String("source"))
			if err != nil {
				return err
			}

			var coord orchestrator.SyncCoordinator = orchestrator.NoopCoordinator{}
			var store recordStore
			if !cmd.Bool("dry-run") {
				store, err = e.openStore()
				switch {
				case errors.Is(err, errNoStore):
				case err != nil:
					return err
				default:
					defer store.Close()
					coord = store
				}
			}

			var target any = []any{}
			switch {
			case cmd.String("target") != "":
				if target, err = readCollection(cmd.String("target")); err != nil {
					return err
				}
			case store != nil:
				recs, err := store.Records(ctx)
				if err != nil {
					return err
				}
				target = recs
			}

			o, err := orchestrator.New(
				orchestrator.WithCoordinator(coord),
				orchestrator.WithConfig(e.app.Config),
				orchestrator.WithLogger(e.logger),
			)
			if err != nil {
				return err
			}

			res, err := o.Run(ctx, orchestrator.Request{
				SourceData: source,
				TargetData: target,
				Options: &orchestrator.Options{
					Source: sourceID(cmd),
					Target: e.app.Store.Driver,
				},
			})
			if err != nil {
				return err
			}

			if f := cmd.String("report"); f != "" {
				report := o.GenerateSyncReport(res, o.AggregatedStatistics())
				if err := orchestrator.EncodeReport(e.out, report, f); err != nil {
					return err
				}
			} else {
				printResult(e, res, cmd.Bool("dry-run"))
			}

			if !res.Success {
				return fmt.Errorf("sync %s failed at %s: %s", res.JobID, res.Stage, res.Error)
			}
			return nil
		},
	}
}

func printResult(e *env, res *orchestrator.SyncResult, dryRun bool) {
	d := res.Differences
	prefix := ""
	if dryRun {
		prefix = dim("(dry run) ")
	}
	if !res.Success {
		fmt.Fprintln(e.out, prefix+statusError(fmt.Sprintf("sync failed at %s: %s", res.Stage, res.Error)))
		return
	}
	fmt.Fprintln(e.out, prefix+statusOK(fmt.Sprintf("synchronized %d records in %s", res.Synchronized, res.ProcessingTime.Round(time.Millisecond))))
	fmt.Fprintf(e.out, "  %s +%d ~%d -%d =%d\n", bold("changes"), d.AddedCount, d.ModifiedCount, d.DeletedCount, d.UnchangedCount)
	if res.Strategy != "" {
		fmt.Fprintf(e.out, "  %s %s\n", bold("strategy"), res.Strategy)
	}
	if res.Conflicts > 0 {
		line := fmt.Sprintf("%d conflicts (%s), %d resolved, %d pending", res.Conflicts, res.ConflictSeverity, res.ConflictsResolved, res.UnresolvedConflicts)
		fmt.Fprintln(e.out, "  "+statusWarn(line))
	}
	if res.SkippedChanges > 0 {
		fmt.Fprintln(e.out, "  "+statusWarn(fmt.Sprintf("%d non-conflicting changes held back until conflicts clear", res.SkippedChanges)))
	}
	if res.RetryCount > 0 {
		fmt.Fprintf(e.out, "  %s %d\n", bold("retries"), res.RetryCount)
	}
}

func conflictsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "conflicts",
		Usage: "List conflicts parked for manual review",
		Flags: []cli.Flag{
			formatFlag("format", "Output format: text, json or yaml"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			pending, err := store.PendingConflicts(ctx)
			if err != nil {
				return err
			}

			if f := cmd.String("format"); f != "" && f != "text" {
				return encode(e.out, pending, f)
			}
			if len(pending) == 0 {
				fmt.Fprintln(e.out, statusOK("no pending conflicts"))
				return nil
			}
			for _, p := range pending {
				fmt.Fprintf(e.out, "%s %s %s %s\n",
					warning(fmt.Sprintf("#%d", p.ID)), bold(p.RecordID), p.Severity,
					dim(p.CreatedAt.Format(time.RFC3339)))
				for _, r := range p.Reasons {
					fmt.Fprintf(e.out, "    %s\n", r)
				}
			}
			return nil
		},
	}
}
