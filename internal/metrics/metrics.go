// Package metrics registers the kernel's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector. One instance is built at startup and
// injected; tests that need isolation pass their own registerer.
type Metrics struct {
	JobsSubmitted   *prometheus.CounterVec
	JobsCompleted   *prometheus.CounterVec
	JobsFailed      *prometheus.CounterVec
	JobsRetried     *prometheus.CounterVec
	JobsRerouted    *prometheus.CounterVec
	JobsBlocked     *prometheus.CounterVec
	SubmitRejected  *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
	HandlerDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_jobs_submitted_total",
			Help: "Jobs accepted by the gateway, by queue.",
		}, []string{"queue"}),
		JobsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_jobs_completed_total",
			Help: "Jobs that finished successfully, by queue.",
		}, []string{"queue"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_jobs_failed_total",
			Help: "Jobs that exhausted retries or hit a fatal error, by queue.",
		}, []string{"queue"}),
		JobsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_jobs_retried_total",
			Help: "Retry attempts scheduled, by queue.",
		}, []string{"queue"}),
		JobsRerouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_jobs_rerouted_total",
			Help: "Email jobs escalated to the approval queue by the safe-send gate.",
		}, []string{"queue"}),
		JobsBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_jobs_blocked_total",
			Help: "Email jobs blocked outright by the safe-send gate.",
		}, []string{"queue"}),
		SubmitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentkernel_submissions_rejected_total",
			Help: "Submissions rejected before enqueue, by reason.",
		}, []string{"reason"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentkernel_queue_depth",
			Help: "Current per-queue job counts, by state partition.",
		}, []string{"queue", "state"}),
		HandlerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentkernel_handler_duration_seconds",
			Help:    "Handler execution time, by queue.",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
	}
}
