package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const jobName = "songlake"

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "songlake_build_info",
			Help: "Build information of the songlake ETL",
		},
		[]string{"version", "commit", "date"},
	)

	RowsWritten = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "songlake_rows_written",
		Help: "Number of rows written per output table in the last run",
	}, []string{"table"})

	RowsRead = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "songlake_rows_read",
		Help: "Number of input records read per source in the last run",
	}, []string{"source"})

	ObjectsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songlake_objects_deleted_total",
		Help: "Total number of stale output objects removed before writes",
	}, []string{"table"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "songlake_stage_duration_seconds",
		Help:    "Duration of each ETL stage",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms .. ~27m
	}, []string{"stage"})

	RunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songlake_run_total",
		Help: "Total number of ETL runs",
	}, []string{"result"})

	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songlake_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run",
	})
)

// Push sends the default registry to a Pushgateway. It is a no-op when url
// is empty.
func Push(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, jobName).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
