// Package metrics exports orchestrator metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c0deZ3R0/go-sync-engine/orchestrator"
)

const namespace = "syncengine"

// PrometheusCollector implements orchestrator.MetricsCollector.
type PrometheusCollector struct {
	duration     *prometheus.HistogramVec
	results      *prometheus.CounterVec
	synchronized prometheus.Counter
	conflicts    *prometheus.CounterVec
	retries      *prometheus.CounterVec
	batchSize    prometheus.Gauge
}

var _ orchestrator.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the engine metrics on reg. Passing nil
// uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync orchestrations by strategy.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"strategy"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_results_total",
			Help:      "Sync orchestrations by outcome and failing stage.",
		}, []string{"success", "stage"}),
		synchronized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_synchronized_total",
			Help:      "Records applied by the sync coordinator.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_detected_total",
			Help:      "Conflicting fields detected by aggregate severity.",
		}, []string{"severity"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retry attempts by outcome.",
		}, []string{"success"}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Batch size currently in effect.",
		}),
	}

	for _, col := range []prometheus.Collector{c.duration, c.results, c.synchronized, c.conflicts, c.retries, c.batchSize} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *PrometheusCollector) RecordSyncDuration(strategy string, d time.Duration) {
	c.duration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (c *PrometheusCollector) RecordSyncResult(success bool, stage string) {
	c.results.WithLabelValues(strconv.FormatBool(success), stage).Inc()
}

func (c *PrometheusCollector) RecordSynchronized(count int) {
	if count > 0 {
		c.synchronized.Add(float64(count))
	}
}

func (c *PrometheusCollector) RecordConflicts(count int, severity string) {
	if count > 0 {
		c.conflicts.WithLabelValues(severity).Add(float64(count))
	}
}

func (c *PrometheusCollector) RecordRetry(success bool) {
	c.retries.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (c *PrometheusCollector) RecordBatchSize(size int) {
	c.batchSize.Set(float64(size))
}
