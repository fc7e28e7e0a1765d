// Package judgemetrics registers the judge core's Prometheus collectors,
// following the promauto singleton-via-sync.Once pattern the teacher's
// internal/metrics/metrics.go used for its own business metrics.
package judgemetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	SubmissionsTotal   *prometheus.CounterVec
	VerdictsTotal      *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	WorkersBusy        prometheus.Gauge
	WorkersIdle        prometheus.Gauge
	CompilePhaseSeconds *prometheus.HistogramVec
	ExecutePhaseSeconds *prometheus.HistogramVec
	SandboxInitFailures *prometheus.CounterVec
)

// Init registers every collector. Safe to call multiple times.
func Init() {
	once.Do(func() {
		SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_submissions_total",
			Help: "Submissions accepted or rejected by the Judge Service façade.",
		}, []string{"outcome"}) // outcome: accepted, validation_error, queue_full, internal_error

		VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_verdicts_total",
			Help: "Terminal verdicts emitted by the worker pipeline, by language and outcome.",
		}, []string{"language", "verdict"})

		QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_queue_depth",
			Help: "Current number of pending jobs in the job queue.",
		})

		WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_workers_busy",
			Help: "Number of workers currently running a pipeline.",
		})

		WorkersIdle = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "judge_workers_idle",
			Help: "Number of workers currently idle.",
		})

		CompilePhaseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judge_compile_phase_seconds",
			Help:    "Wall-clock duration of the compile phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"language"})

		ExecutePhaseSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judge_execute_phase_seconds",
			Help:    "Wall-clock duration of the execute phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"language"})

		SandboxInitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_sandbox_init_failures_total",
			Help: "Sandbox box initialization failures, by box id.",
		}, []string{"box_id"})
	})
}

// init registers the collectors at import, so the judge service and the
// worker pipeline can record metrics even where nothing called Init.
func init() {
	Init()
}
