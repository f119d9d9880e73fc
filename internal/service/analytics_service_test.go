package service

import (
	"context"
	"testing"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesDefaults(t *testing.T) {
	store := &fakeAnalytics{}
	svc := NewAnalyticsService(store, logger.Discard())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Series(context.Background(), repository.SeriesQuery{HostID: "h1", MetricType: "cpu", Field: " load_avg.1min. "})
	require.NoError(t, err)
	require.Len(t, store.series, 1)

	q := store.series[0]
	assert.Equal(t, "load_avg.1min", q.Field)
	assert.Equal(t, 5*time.Minute, q.Bucket)
	assert.Equal(t, now, q.End)
	assert.Equal(t, now.Add(-24*time.Hour), q.Start)
}

func TestSeriesValidation(t *testing.T) {
	svc := NewAnalyticsService(&fakeAnalytics{}, logger.Discard())
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	cases := []repository.SeriesQuery{
		{MetricType: "cpu", Field: "percent"},
		{HostID: "h1", Field: "percent"},
		{HostID: "h1", MetricType: "cpu"},
		{HostID: "h1", MetricType: "cpu", Field: "percent", Bucket: time.Second},
		{HostID: "h1", MetricType: "cpu", Field: "percent", Start: start, End: start},
		{HostID: "h1", MetricType: "cpu", Field: "percent", Start: start, End: start.Add(30 * 24 * time.Hour), Bucket: time.Minute},
	}
	for i, q := range cases {
		_, err := svc.Series(ctx, q)
		assert.ErrorIs(t, err, ErrInvalidInput, "case %d", i)
	}
}

func TestFleetHealthPassesThrough(t *testing.T) {
	svc := NewAnalyticsService(&fakeAnalytics{}, logger.Discard())
	h, err := svc.FleetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.TotalHosts)
}
