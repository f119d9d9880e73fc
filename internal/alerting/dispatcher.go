package alerting

import (
	"context"
	"sync"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/metrics"
	"HomelabMonitorAPI/internal/models"
)

// Evaluator is the part of Engine the dispatcher drives.
type Evaluator interface {
	Evaluate(ctx context.Context, hostID, metricType string, data map[string]interface{}) ([]*models.Alert, error)
	PruneCooldowns() int
}

// AlertNotifier receives alerts after they have been persisted.
type AlertNotifier interface {
	NotifyAlert(alert *models.Alert)
}

// Job is one metric type of one ingested batch.
type Job struct {
	HostID     string
	MetricType string
	Data       map[string]interface{}
}

type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	EvalTimeout   time.Duration
	PruneInterval time.Duration
}

// Dispatcher runs evaluations on a fixed pool of workers fed by a bounded
// queue. When the queue is full new jobs are rejected, not queued.
type Dispatcher struct {
	evaluator Evaluator
	notifier  AlertNotifier
	cfg       DispatcherConfig
	jobs      chan Job
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(evaluator Evaluator, notifier AlertNotifier, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		evaluator: evaluator,
		notifier:  notifier,
		cfg:       cfg,
		jobs:      make(chan Job, cfg.QueueSize),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (d *Dispatcher) Start() {
	d.log.Info("Starting alert dispatcher (%d workers, queue %d)", d.cfg.Workers, d.cfg.QueueSize)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	if d.cfg.PruneInterval > 0 {
		d.wg.Add(1)
		go d.pruneLoop()
	}
}

// Stop cancels the workers and waits for in-flight evaluations, or for ctx.
// Queued jobs that never started are dropped.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if n := len(d.jobs); n > 0 {
			d.log.Warn("Alert dispatcher stopped with %d queued jobs dropped", n)
		}
		d.log.Info("Alert dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue hands a job to the pool without blocking. It returns false when the
// queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(job Job) bool {
	if d.ctx.Err() != nil {
		return false
	}

	select {
	case d.jobs <- job:
		metrics.QueueDepth.Set(float64(len(d.jobs)))
		return true
	default:
		metrics.QueueRejected.Inc()
		d.log.Warn("Alert queue full, rejected %s evaluation for host %s", job.MetricType, job.HostID)
		return false
	}
}

func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			metrics.QueueDepth.Set(float64(len(d.jobs)))
			d.process(job)
		}
	}
}

func (d *Dispatcher) process(job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.EvalTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.Evaluations.WithLabelValues("panic").Inc()
			d.log.Error("Panic evaluating %s for host %s: %v", job.MetricType, job.HostID, r)
		}
	}()

	alerts, err := d.evaluator.Evaluate(ctx, job.HostID, job.MetricType, job.Data)
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Evaluations.WithLabelValues("error").Inc()
		d.log.Error("Alert evaluation failed for host %s (%s): %v", job.HostID, job.MetricType, err)
		return
	}
	metrics.Evaluations.WithLabelValues("ok").Inc()

	if d.notifier == nil {
		return
	}
	for _, alert := range alerts {
		d.notifier.NotifyAlert(alert)
	}
}

func (d *Dispatcher) pruneLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if n := d.evaluator.PruneCooldowns(); n > 0 {
				d.log.Debug("Pruned %d expired cooldown entries", n)
			}
		}
	}
}
