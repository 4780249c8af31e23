package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// FeedFetchDuration observes every source adapter call.
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_feed_fetch_duration_seconds",
			Help:    "Duration of source feed fetches",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "outcome"},
	)

	RoundCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_round_cache_lookups_total",
			Help: "Round catalog cache lookups",
		},
		[]string{"result"},
	)

	RejectionEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rejection_events_total",
			Help: "Rejection notification events handed to the publisher",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_http_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"route", "status"},
	)
)
