package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_TaskLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Enqueuing()
	m.Submitted()
	m.Enqueuing()
	m.Submitted()
	require.Equal(t, 2.0, testutil.ToFloat64(m.TasksSubmitted))
	require.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth))

	m.Started(10 * time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(m.QueueDepth))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TasksActive))

	m.Finished(OutcomePanic, time.Millisecond)
	require.Equal(t, 0.0, testutil.ToFloat64(m.TasksActive))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TasksCompleted.WithLabelValues(OutcomePanic)))

	m.Discarded(1)
	require.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TasksCompleted.WithLabelValues(OutcomeDiscarded)))

	m.Enqueuing()
	m.Rejected()
	require.Equal(t, 1.0, testutil.ToFloat64(m.TasksRejected))
	require.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth))
	require.Equal(t, 2.0, testutil.ToFloat64(m.TasksSubmitted))
}

func TestMetrics_Workers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerStopped()
	require.Equal(t, 1.0, testutil.ToFloat64(m.Workers))
}

func TestMetrics_RegistersEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Finished(OutcomeSuccess, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	require.Contains(t, names, "threadpool_tasks_submitted_total")
	require.Contains(t, names, "threadpool_tasks_completed_total")
	require.Contains(t, names, "threadpool_task_duration_seconds")
	require.Contains(t, names, "threadpool_task_wait_seconds")
	require.Contains(t, names, "threadpool_workers")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.Enqueuing()
		m.Submitted()
		m.Rejected()
		m.Started(time.Second)
		m.Finished(OutcomeSuccess, time.Second)
		m.Discarded(3)
		m.WorkerStarted()
		m.WorkerStopped()
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = New(reg)

	require.Panics(t, func() { _ = New(reg) })
}
