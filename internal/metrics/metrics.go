// Package metrics exposes Prometheus instrumentation for reelsync.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelsync_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	taskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_task_runs_total",
			Help: "Total number of task executions by terminal status",
		},
		[]string{"status"},
	)

	taskRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelsync_task_run_duration_seconds",
			Help:    "Task execution time in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 180},
		},
	)

	lockAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelsync_lock_acquisitions_total",
			Help: "Total number of lock acquisition attempts by result",
		},
		[]string{"result"},
	)

	locksSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelsync_locks_swept_total",
			Help: "Total number of expired locks removed by sweeps",
		},
	)

	tasksArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelsync_tasks_armed",
			Help: "Number of tasks with an armed timer",
		},
	)
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTaskRun records one finished task execution.
func RecordTaskRun(status string, duration time.Duration) {
	taskRunsTotal.WithLabelValues(status).Inc()
	taskRunDuration.Observe(duration.Seconds())
}

// RecordLockAcquisition records one lock acquisition attempt.
// result is one of: granted, denied, reentered.
func RecordLockAcquisition(result string) {
	lockAcquisitionsTotal.WithLabelValues(result).Inc()
}

// RecordLocksSwept records expired locks removed during a sweep.
func RecordLocksSwept(count int) {
	locksSweptTotal.Add(float64(count))
}

// SetTasksArmed updates the armed timer gauge.
func SetTasksArmed(count int) {
	tasksArmed.Set(float64(count))
}
