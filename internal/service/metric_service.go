package service

import (
	"context"
	"fmt"
	"time"

	"HomelabMonitorAPI/internal/alerting"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/metrics"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/websocket"
)

// Ingestion sources, used as a metrics label.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

const (
	defaultQueryLimit  = 1000
	maxQueryLimit      = 10000
	defaultQueryWindow = 24 * time.Hour
)

type MetricStore interface {
	InsertBatch(ctx context.Context, rows []models.Metric) error
	Query(ctx context.Context, q *models.MetricQuery) ([]models.Metric, error)
	Latest(ctx context.Context, hostID string) ([]models.Metric, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type HostTouchStore interface {
	UpdateLastSeen(ctx context.Context, id string, ts time.Time, status string) (string, error)
}

// EvaluationQueue accepts alert evaluation jobs without blocking.
type EvaluationQueue interface {
	Enqueue(job alerting.Job) bool
}

type MetricService struct {
	store         MetricStore
	hosts         HostTouchStore
	hub           Broadcaster
	queue         EvaluationQueue
	retentionDays int
	now           func() time.Time
	log           *logger.Logger
}

func NewMetricService(
	store MetricStore,
	hosts HostTouchStore,
	hub Broadcaster,
	queue EvaluationQueue,
	retentionDays int,
	log *logger.Logger,
) *MetricService {
	return &MetricService{
		store:         store,
		hosts:         hosts,
		hub:           hub,
		queue:         queue,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log,
	}
}

// Ingest stores one agent payload, marks the host healthy, streams the payload
// to live clients and queues one alert evaluation per metric type. Evaluation
// happens after Ingest returns; its failures never touch the stored rows.
func (s *MetricService) Ingest(ctx context.Context, hostID string, payload *models.MetricPayload, source string) (*models.IngestResponse, error) {
	received := s.now().UTC()
	batch := payload.ToBatch(hostID, received)
	types := batch.Types()
	if len(types) == 0 {
		return nil, invalidf("payload contains no metrics")
	}

	rows := make([]models.Metric, 0, len(types))
	for _, t := range types {
		rows = append(rows, models.Metric{
			HostID:     hostID,
			Timestamp:  batch.Timestamp,
			MetricType: t,
			Data:       batch.Metrics[t],
		})
	}
	if err := s.store.InsertBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to store metrics: %w", err)
	}
	for _, t := range types {
		metrics.MetricsIngested.WithLabelValues(t, source).Inc()
	}

	s.touchHost(ctx, hostID, received)

	s.hub.PublishHostScoped(hostID, websocket.MetricMessage(hostID, map[string]interface{}{
		"timestamp": batch.Timestamp,
		"metrics":   batch.Metrics,
	}))

	for _, t := range types {
		s.queue.Enqueue(alerting.Job{HostID: hostID, MetricType: t, Data: batch.Metrics[t]})
	}

	s.log.Debug("Stored %d metric types for host %s via %s", len(types), hostID, source)
	return &models.IngestResponse{
		Status:      "ok",
		HostID:      hostID,
		Stored:      len(rows),
		MetricTypes: types,
	}, nil
}

func (s *MetricService) touchHost(ctx context.Context, hostID string, ts time.Time) {
	previous, err := s.hosts.UpdateLastSeen(ctx, hostID, ts, models.HostStatusHealthy)
	if err != nil {
		s.log.Warn("Failed to update last_seen for host %s: %v", hostID, err)
		return
	}
	if previous != models.HostStatusHealthy {
		s.log.Info("Host %s status %s -> %s", hostID, previous, models.HostStatusHealthy)
		s.hub.BroadcastAll(websocket.HostStatusMessage(hostID, models.HostStatusHealthy))
	}
}

// Query applies defaults: the last 24 hours and 1000 rows.
func (s *MetricService) Query(ctx context.Context, q *models.MetricQuery) ([]models.Metric, error) {
	if q.Offset < 0 {
		return nil, invalidf("offset must be >= 0")
	}
	if q.Limit < 0 || q.Limit > maxQueryLimit {
		return nil, invalidf("limit must be between 1 and %d", maxQueryLimit)
	}
	if q.Limit == 0 {
		q.Limit = defaultQueryLimit
	}
	if q.Start.IsZero() && q.End.IsZero() {
		q.Start = s.now().UTC().Add(-defaultQueryWindow)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return nil, invalidf("start must be before end")
	}
	return s.store.Query(ctx, q)
}

func (s *MetricService) Latest(ctx context.Context, hostID string) ([]models.Metric, error) {
	return s.store.Latest(ctx, hostID)
}

// Cleanup deletes metrics older than days; zero means the configured retention.
func (s *MetricService) Cleanup(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, invalidf("days must be >= 0")
	}
	if days == 0 {
		days = s.retentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)

	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("Deleted %d metric rows older than %d days", n, days)
	return n, nil
}
