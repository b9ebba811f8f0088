package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/c0deZ3R0/go-sync-engine/metrics"
	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
	"github.com/c0deZ3R0/go-sync-engine/record"
	"github.com/c0deZ3R0/go-sync-engine/schedule"
)

const (
	metricsReadTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func watchCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Synchronize on a schedule and serve Prometheus metrics",
		Flags: []cli.Flag{
			sourceFlag(true),
			sourceIDFlag(),
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Listen address for /metrics (overrides metrics_addr)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := e.openStore()
			if err != nil && !errors.Is(err, errNoStore) {
				return err
			}
			var coord orchestrator.SyncCoordinator = orchestrator.NoopCoordinator{}
			if store != nil {
				defer store.Close()
				coord = store
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			collector, err := metrics.NewPrometheusCollector(reg)
			if err != nil {
				return err
			}

			o, err := orchestrator.New(
				orchestrator.WithCoordinator(coord),
				orchestrator.WithConfig(e.app.Config),
				orchestrator.WithLogger(e.logger),
				orchestrator.WithMetrics(collector),
			)
			if err != nil {
				return err
			}

			sourcePath := cmd.String("source")
			load := func(ctx context.Context) ([]record.Record, []record.Record, error) {
				source, err := loadRecords(sourcePath)
				if err != nil {
					return nil, nil, err
				}
				if store == nil {
					return source, []record.Record{}, nil
				}
				target, err := store.Records(ctx)
				return source, target, err
			}

			sched := schedule.New(schedule.WithLogger(e.logger))
			opts := orchestrator.Options{Source: sourceID(cmd), Target: e.app.Store.Driver}
			if err := sched.Add("sync", e.app.Schedule.Sync, schedule.SyncJob(o, load, opts)); err != nil {
				return err
			}
			if err := sched.Add("tune", e.app.Schedule.Tune, schedule.AutoTuneJob(o)); err != nil {
				return err
			}

			addr := e.app.MetricsAddr
			if a := cmd.String("metrics-addr"); a != "" {
				addr = a
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
			server := &http.Server{
				Handler:           mux,
				ReadHeaderTimeout: metricsReadTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			sched.Start()
			e.logger.InfoContext(ctx, "watching",
				slog.String("source", sourcePath),
				slog.String("metrics_addr", ln.Addr().String()),
				slog.Int("jobs", len(sched.Entries())),
			)
			fmt.Fprintln(e.out, statusOK(fmt.Sprintf("watching %s, metrics on http://%s/metrics", sourcePath, ln.Addr())))

			var runErr error
			select {
			case <-ctx.Done():
			case err, ok := <-serveErr:
				if ok {
					runErr = fmt.Errorf("metrics server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := sched.Stop(shutdownCtx); err != nil {
				e.logger.LogError(shutdownCtx, err, "scheduler did not stop cleanly")
			}
			if err := server.Shutdown(shutdownCtx); err != nil {
				e.logger.LogError(shutdownCtx, err, "metrics server forced to shutdown")
			}
			e.logger.Info("watch stopped")
			return runErr
		},
	}
}
