// Package metrics provides centralized Prometheus metrics registry for the grid search.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridsearch"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	CheckpointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkpoints_total",
		Help:      "Total number of result snapshots by status",
	}, []string{"status"})
	PriceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_requests_total",
		Help:      "Total number of price source requests by source and status",
	}, []string{"source", "status"})
	UploadedFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_files_total",
		Help:      "Total number of files pushed to object storage by status",
	}, []string{"status"})
	OrdersSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_submitted_total",
		Help:      "Total number of broker orders by side and status",
	}, []string{"side", "status"})
)

// Histogram metrics
var (
	PriceRequestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "price_request_latency_seconds",
		Help:      "Latency of price source requests in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	CheckpointDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkpoint_duration_seconds",
		Help:      "Duration of result snapshot writes in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(CheckpointsTotal)
		registry.MustRegister(PriceRequestsTotal)
		registry.MustRegister(UploadedFilesTotal)
		registry.MustRegister(OrdersSubmittedTotal)

		registry.MustRegister(PriceRequestLatency)
		registry.MustRegister(CheckpointDuration)

		// Register grid metrics
		registry.MustRegister(GridTasksTotal)
		registry.MustRegister(GridTaskDuration)
		registry.MustRegister(GridTasksPending)
		registry.MustRegister(GridBestFinalValue)
		registry.MustRegister(GridHighPerformers)
		registry.MustRegister(GridRunDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordCheckpoint records a snapshot attempt.
func RecordCheckpoint(success bool, durationSeconds float64) {
	CheckpointsTotal.WithLabelValues(statusLabel(success)).Inc()
	CheckpointDuration.Observe(durationSeconds)
}

// RecordPriceRequest records a price source request.
func RecordPriceRequest(source string, success bool, durationSeconds float64) {
	PriceRequestsTotal.WithLabelValues(source, statusLabel(success)).Inc()
	PriceRequestLatency.Observe(durationSeconds)
}

// RecordUpload records one uploaded file.
func RecordUpload(success bool) {
	UploadedFilesTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordOrder records a broker order submission.
func RecordOrder(side string, success bool) {
	OrdersSubmittedTotal.WithLabelValues(side, statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
