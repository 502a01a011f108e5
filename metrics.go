package work

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by queues. A single Metrics
// may be shared by several queues; series are labelled with the queue name.
type Metrics struct {
	TasksEnqueued  *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksCleared   *prometheus.CounterVec
	TasksDiscarded *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	Pending        *prometheus.GaugeVec
	WorkerBusy     *prometheus.GaugeVec
	TaskDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, or with the
// default registerer if reg is nil. The namespace defaults to "work".
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "work"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"queue"}

	m := &Metrics{
		TasksEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_enqueued_total",
			Help:      "Total tasks accepted into the queue.",
		}, labels),

		TasksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Total tasks rejected because the queue was shut down.",
		}, labels),

		TasksCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_cleared_total",
			Help:      "Total pending tasks removed by Clear.",
		}, labels),

		TasksDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_discarded_total",
			Help:      "Total pending tasks dropped at shutdown.",
		}, labels),

		TasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Total tasks which ran to completion.",
		}, labels),

		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_failed_total",
			Help:      "Total tasks which panicked or exited their goroutine. After hook failures are not counted.",
		}, labels),

		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Current number of pending tasks.",
		}, labels),

		WorkerBusy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_busy",
			Help:      "1 while the worker is executing a task, 0 otherwise.",
		}, labels),

		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}

	reg.MustRegister(
		m.TasksEnqueued,
		m.TasksRejected,
		m.TasksCleared,
		m.TasksDiscarded,
		m.TasksCompleted,
		m.TasksFailed,
		m.Pending,
		m.WorkerBusy,
		m.TaskDuration,
	)

	return m
}

// The helpers below are no-ops on a nil receiver so queues without metrics
// need no checks.

func (m *Metrics) enqueued(queue string, pending int) {
	if m == nil {
		return
	}
	m.TasksEnqueued.WithLabelValues(queue).Inc()
	m.Pending.WithLabelValues(queue).Set(float64(pending))
}

func (m *Metrics) rejected(queue string) {
	if m == nil {
		return
	}
	m.TasksRejected.WithLabelValues(queue).Inc()
}

func (m *Metrics) cleared(queue string, n int) {
	if m == nil {
		return
	}
	m.TasksCleared.WithLabelValues(queue).Add(float64(n))
	m.Pending.WithLabelValues(queue).Set(0)
}

func (m *Metrics) discarded(queue string, n int) {
	if m == nil {
		return
	}
	m.TasksDiscarded.WithLabelValues(queue).Add(float64(n))
	m.Pending.WithLabelValues(queue).Set(0)
}

func (m *Metrics) dequeued(queue string, pending int) {
	if m == nil {
		return
	}
	m.Pending.WithLabelValues(queue).Set(float64(pending))
	m.WorkerBusy.WithLabelValues(queue).Set(1)
}

func (m *Metrics) idle(queue string) {
	if m == nil {
		return
	}
	m.WorkerBusy.WithLabelValues(queue).Set(0)
}

func (m *Metrics) finished(queue string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.WorkerBusy.WithLabelValues(queue).Set(0)
	m.TaskDuration.WithLabelValues(queue).Observe(d.Seconds())
	if err != nil {
		m.TasksFailed.WithLabelValues(queue).Inc()
		return
	}
	m.TasksCompleted.WithLabelValues(queue).Inc()
}
