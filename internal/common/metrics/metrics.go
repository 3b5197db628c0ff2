// Package metrics holds the Prometheus collectors exported on /metrics.
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
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Latency of corpus retrieval by mode",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 0.8, 1, 2.5},
		},
		[]string{"mode"},
	)

	RetrievalDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_degraded_total",
			Help: "Retrievals answered by keyword fallback",
		},
		[]string{"reason"},
	)

	TriagePoolSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_pool_size",
			Help:    "Occupation pool size after triage",
			Buckets: []float64{25, 50, 100, 125, 150, 300, 900},
		},
		[]string{"stage"},
	)

	MatchingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "matching_rank_duration_seconds",
			Help: "Time spent ranking an occupation pool",
		},
	)

	ReferenceReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_reloads_total",
			Help: "Reference snapshot reload attempts",
		},
		[]string{"source", "status"},
	)

	ReferenceVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reference_snapshot_version",
			Help: "Version of the reference snapshot currently served",
		},
	)
)
