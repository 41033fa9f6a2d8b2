package metrics

import "github.com/prometheus/client_golang/prometheus"

// Grid task statuses
const (
	TaskSucceeded      = "succeeded"
	TaskFailed         = "failed"
	TaskSkippedInvalid = "skipped_invalid"
	TaskResumed        = "resumed"
)

// Grid counter vectors
var (
	GridTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grid_tasks_total",
		Help:      "Total number of grid tasks by status",
	}, []string{"status"})
)

// Grid histograms
var (
	GridTaskDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "grid_task_duration_seconds",
		Help:      "Duration of one window/parameter evaluation in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
	GridRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "grid_run_duration_seconds",
		Help:      "Duration of full grid runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
	})
)

// Grid gauges
var (
	GridTasksPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "grid_tasks_pending",
		Help:      "Number of grid tasks not yet completed in the current run",
	})
	GridBestFinalValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "grid_best_final_value",
		Help:      "Highest final portfolio value seen in the current run",
	})
	GridHighPerformers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "grid_high_performers",
		Help:      "Number of records at or above the high performer multiple",
	})
)

// RecordGridTask records one completed grid task.
// status should be one of: "succeeded", "failed"
func RecordGridTask(status string, durationSeconds float64) {
	GridTasksTotal.WithLabelValues(status).Inc()
	GridTaskDuration.Observe(durationSeconds)
}

// RecordGridTasksNotRun records tasks that were planned out of the run.
// status should be one of: "skipped_invalid", "resumed"
func RecordGridTasksNotRun(status string, count int) {
	GridTasksTotal.WithLabelValues(status).Add(float64(count))
}

// UpdateGridPending sets the number of pending tasks.
func UpdateGridPending(count int) {
	GridTasksPending.Set(float64(count))
}

// UpdateGridBest updates best value and high performer gauges.
func UpdateGridBest(bestFinalValue float64, highPerformers int) {
	GridBestFinalValue.Set(bestFinalValue)
	GridHighPerformers.Set(float64(highPerformers))
}

// RecordGridRun records a full grid run duration.
func RecordGridRun(durationSeconds float64) {
	GridRunDuration.Observe(durationSeconds)
}
