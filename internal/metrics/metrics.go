package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lorekeep_jobs_dispatched_total",
		Help: "Jobs admitted and persisted, by type.",
	}, []string{"type"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lorekeep_jobs_completed_total",
		Help: "Jobs that reached the completed state, by type.",
	}, []string{"type"})

	JobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lorekeep_jobs_retried_total",
		Help: "Transient failures scheduled for retry, by type.",
	}, []string{"type"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lorekeep_jobs_failed_total",
		Help: "Jobs that reached the terminal failed state, by type.",
	}, []string{"type"})

	AdmissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lorekeep_admission_denied_total",
		Help: "Dispatch rejections, by reason.",
	}, []string{"reason"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lorekeep_handler_duration_seconds",
		Help:    "Wall time of one handler attempt, by type.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"type"})
)
