package service

import (
	"context"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/repository"
)

const (
	defaultSeriesBucket = 5 * time.Minute
	minSeriesBucket     = time.Minute
	maxSeriesPoints     = 2000
	fleetActiveWindow   = 15 * time.Minute
)

type AnalyticsStore interface {
	MetricSeries(ctx context.Context, q repository.SeriesQuery) ([]repository.TimeSeriesPoint, error)
	FleetHealth(ctx context.Context, activeWindow time.Duration) (*repository.FleetHealth, error)
}

type AnalyticsService struct {
	analyticsRepo AnalyticsStore
	now           func() time.Time
	log           *logger.Logger
}

func NewAnalyticsService(analyticsRepo AnalyticsStore, log *logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo: analyticsRepo,
		now:           time.Now,
		log:           log,
	}
}

// Series defaults to the last 24 hours in 5 minute buckets and refuses
// windows that would produce more than maxSeriesPoints buckets.
func (s *AnalyticsService) Series(ctx context.Context, q repository.SeriesQuery) ([]repository.TimeSeriesPoint, error) {
	q.Field = strings.Trim(strings.TrimSpace(q.Field), ".")
	switch {
	case q.HostID == "":
		return nil, invalidf("host_id is required")
	case q.MetricType == "":
		return nil, invalidf("metric_type is required")
	case q.Field == "":
		return nil, invalidf("field is required")
	}

	if q.Bucket == 0 {
		q.Bucket = defaultSeriesBucket
	}
	if q.Bucket < minSeriesBucket {
		return nil, invalidf("bucket must be at least %s", minSeriesBucket)
	}
	if q.End.IsZero() {
		q.End = s.now().UTC()
	}
	if q.Start.IsZero() {
		q.Start = q.End.Add(-defaultQueryWindow)
	}
	if !q.Start.Before(q.End) {
		return nil, invalidf("start must be before end")
	}
	if q.End.Sub(q.Start)/q.Bucket > maxSeriesPoints {
		return nil, invalidf("window too large for bucket %s (max %d points)", q.Bucket, maxSeriesPoints)
	}

	s.log.Debug("Metric series host=%s type=%s field=%s bucket=%s", q.HostID, q.MetricType, q.Field, q.Bucket)
	return s.analyticsRepo.MetricSeries(ctx, q)
}

func (s *AnalyticsService) FleetHealth(ctx context.Context) (*repository.FleetHealth, error) {
	return s.analyticsRepo.FleetHealth(ctx, fleetActiveWindow)
}
