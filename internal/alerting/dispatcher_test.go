package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	mu      sync.Mutex
	jobs    []Job
	alerts  []*models.Alert
	err     error
	block   chan struct{}
	pruned  int
	running chan struct{}
}

func (s *stubEvaluator) Evaluate(ctx context.Context, hostID, metricType string, data map[string]interface{}) ([]*models.Alert, error) {
	if s.running != nil {
		s.running <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{HostID: hostID, MetricType: metricType, Data: data})
	return s.alerts, s.err
}

func (s *stubEvaluator) PruneCooldowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned++
	return 0
}

func (s *stubEvaluator) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (n *recordingNotifier) NotifyAlert(alert *models.Alert) {
	n.mu.Lock()
	n.alerts = append(n.alerts, alert)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(&stubEvaluator{}, nil, DispatcherConfig{Workers: 1, QueueSize: 2}, logger.Discard())

	assert.True(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu"}))
	assert.True(t, d.Enqueue(Job{HostID: "h", MetricType: "memory"}))
	assert.False(t, d.Enqueue(Job{HostID: "h", MetricType: "network"}))
	assert.Equal(t, 2, d.Pending())
}

func TestDispatcherEvaluatesAndNotifies(t *testing.T) {
	alert := &models.Alert{ID: "a1", HostID: "h", Severity: models.SeverityWarning}
	eval := &stubEvaluator{alerts: []*models.Alert{alert}}
	notifier := &recordingNotifier{}

	d := NewDispatcher(eval, notifier, DispatcherConfig{Workers: 2, QueueSize: 8}, logger.Discard())
	d.Start()
	defer d.Stop(context.Background())

	require.True(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu", Data: cpu(95)}))
	require.True(t, d.Enqueue(Job{HostID: "h", MetricType: "memory", Data: cpu(95)}))

	require.Eventually(t, func() bool { return notifier.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, eval.jobCount())
}

func TestDispatcherEvaluationErrorSkipsNotify(t *testing.T) {
	eval := &stubEvaluator{
		alerts: []*models.Alert{{ID: "a1"}},
		err:    errors.New("persist failed"),
	}
	notifier := &recordingNotifier{}

	d := NewDispatcher(eval, notifier, DispatcherConfig{Workers: 1, QueueSize: 1}, logger.Discard())
	d.Start()

	require.True(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu"}))
	require.Eventually(t, func() bool { return eval.jobCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop(context.Background()))

	assert.Zero(t, notifier.count())
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	eval := &stubEvaluator{block: make(chan struct{}), running: make(chan struct{}, 10)}
	d := NewDispatcher(eval, nil, DispatcherConfig{Workers: 2, QueueSize: 1}, logger.Discard())
	d.Start()

	// Occupy both workers.
	for i := 0; i < 2; i++ {
		require.True(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu"}))
		<-eval.running
	}

	assert.True(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu"}))
	assert.False(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu"}))

	close(eval.block)
	require.Eventually(t, func() bool { return eval.jobCount() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherStopRejectsNewJobs(t *testing.T) {
	d := NewDispatcher(&stubEvaluator{}, nil, DispatcherConfig{Workers: 1, QueueSize: 4}, logger.Discard())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.False(t, d.Enqueue(Job{HostID: "h", MetricType: "cpu"}))
}

func TestDispatcherPrunesPeriodically(t *testing.T) {
	eval := &stubEvaluator{}
	d := NewDispatcher(eval, nil, DispatcherConfig{Workers: 1, QueueSize: 1, PruneInterval: 5 * time.Millisecond}, logger.Discard())
	d.Start()
	defer d.Stop(context.Background())

	require.Eventually(t, func() bool {
		eval.mu.Lock()
		defer eval.mu.Unlock()
		return eval.pruned >= 2
	}, time.Second, 5*time.Millisecond)
}
