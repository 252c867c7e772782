// Package metrics exposes Prometheus collectors describing worker pool activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "threadpool"

// Outcome labels for completed tasks.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
	OutcomeDiscarded = "discarded"
)

// Metrics holds the pool collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksRejected  prometheus.Counter
	TasksCompleted *prometheus.CounterVec

	TasksActive prometheus.Gauge
	QueueDepth  prometheus.Gauge
	Workers     prometheus.Gauge

	TaskDuration prometheus.Histogram
	TaskWait     prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg falls
// back to prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		TasksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}),
		TasksRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total number of tasks the pool refused to accept",
		}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that left the pool, by outcome",
		}, []string{"outcome"}),
		TasksActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_active",
			Help:      "Number of tasks currently executing",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tasks waiting for a worker",
		}),
		Workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Number of running worker goroutines",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent executing a task",
			Buckets:   prometheus.DefBuckets,
		}),
		TaskWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_wait_seconds",
			Help:      "Time a task spent queued before a worker picked it up",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Enqueuing raises the queue depth for a task about to be queued. It must be
// followed by Submitted or Rejected.
func (m *Metrics) Enqueuing() {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
}

// Submitted records that the task counted by Enqueuing was accepted.
func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.TasksSubmitted.Inc()
}

// Rejected records that the task counted by Enqueuing was refused.
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
	m.TasksRejected.Inc()
}

// Started records that a worker dequeued a task after it waited for wait.
func (m *Metrics) Started(wait time.Duration) {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
	m.TasksActive.Inc()
	m.TaskWait.Observe(wait.Seconds())
}

// Finished records the outcome of a task that ran for took.
func (m *Metrics) Finished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.TasksActive.Dec()
	m.TaskDuration.Observe(took.Seconds())
	m.TasksCompleted.WithLabelValues(outcome).Inc()
}

// Discarded records n queued tasks that were dropped without running.
func (m *Metrics) Discarded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.QueueDepth.Sub(float64(n))
	m.TasksCompleted.WithLabelValues(OutcomeDiscarded).Add(float64(n))
}

func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.Workers.Inc()
}

func (m *Metrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.Workers.Dec()
}
