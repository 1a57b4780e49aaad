// Package metrics provides Prometheus metrics for analysis runs. They are
// written to a node_exporter textfile at the end of a command.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registry = prometheus.NewRegistry()
	factory  = promauto.With(Registry)

	RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battery_analyzer_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"pipeline", "status"},
	)

	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "battery_analyzer_stage_duration_seconds",
			Help:    "Time taken by each pipeline stage",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"pipeline", "stage"},
	)

	RowsSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battery_analyzer_rows_skipped_total",
			Help: "Malformed log lines skipped while reading",
		},
		[]string{"file"},
	)

	CyclesAnalyzed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "battery_analyzer_cycles_analyzed_total",
			Help: "Cycles with metrics produced",
		},
	)

	ProfilePoints = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "battery_analyzer_profile_points_total",
			Help: "Profile points produced",
		},
	)
)

// Run status labels.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

func RecordRun(pipeline, status string) {
	RunsTotal.WithLabelValues(pipeline, status).Inc()
}

func RecordStage(pipeline, stage string, d time.Duration) {
	StageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

func RecordSkipped(file string, n int) {
	if n > 0 {
		RowsSkipped.WithLabelValues(file).Add(float64(n))
	}
}

// WriteTextfile writes the current values for the node_exporter textfile
// collector. An empty path does nothing.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
