package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/repository"
	"HomelabMonitorAPI/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateHostReturnsKeyOnceAndStoresDigest(t *testing.T) {
	store := newFakeHostStore()
	svc := NewHostService(store, &fakeHub{}, logger.Discard())

	created, err := svc.Create(context.Background(), &models.CreateHostRequest{Name: "  nas  "})
	require.NoError(t, err)

	assert.Equal(t, "nas", created.Name)
	assert.Equal(t, models.HostStatusUnknown, created.Status)
	assert.True(t, strings.HasPrefix(created.APIKey, apiKeyPrefix))

	stored := store.hosts[created.ID]
	require.NotNil(t, stored)
	assert.Equal(t, HashAPIKey(created.APIKey), stored.APIKeyHash)
	assert.NotContains(t, stored.APIKeyHash, created.APIKey)
}

func TestCreateHostValidation(t *testing.T) {
	svc := NewHostService(newFakeHostStore(), &fakeHub{}, logger.Discard())

	_, err := svc.Create(context.Background(), &models.CreateHostRequest{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), &models.CreateHostRequest{Name: strings.Repeat("x", 256)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateHostDuplicateName(t *testing.T) {
	svc := NewHostService(newFakeHostStore(), &fakeHub{}, logger.Discard())
	ctx := context.Background()

	_, err := svc.Create(ctx, &models.CreateHostRequest{Name: "nas"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &models.CreateHostRequest{Name: "nas"})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	svc := NewHostService(newFakeHostStore(), &fakeHub{}, logger.Discard())
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.CreateHostRequest{Name: "nas"})
	require.NoError(t, err)

	host, err := svc.Authenticate(ctx, created.APIKey)
	require.NoError(t, err)
	assert.Equal(t, created.ID, host.ID)

	_, err = svc.Authenticate(ctx, "hk_wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "no-prefix")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateHostBroadcastsStatusChange(t *testing.T) {
	store := newFakeHostStore()
	store.hosts["h1"] = &models.Host{ID: "h1", Name: "nas", Status: models.HostStatusHealthy}
	hub := &fakeHub{}
	svc := NewHostService(store, hub, logger.Discard())

	critical := models.HostStatusCritical
	_, err := svc.Update(context.Background(), "h1", &models.UpdateHostRequest{Status: &critical})
	require.NoError(t, err)

	msgs := hub.ofType(websocket.TypeHostStatus)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.HostStatusCritical, msgs[0].msg.Status)

	bogus := "down"
	_, err = svc.Update(context.Background(), "h1", &models.UpdateHostRequest{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHostMonitorSweepStale(t *testing.T) {
	store := newFakeHostStore()
	store.stale = []string{"a", "b"}
	hub := &fakeHub{}

	hm := NewHostMonitor(store, nil, hub, HostMonitorConfig{StaleAfter: 3 * time.Minute}, logger.Discard())
	n, err := hm.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs := hub.ofType(websocket.TypeHostStatus)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.HostStatusUnknown, msgs[0].msg.Status)
	assert.True(t, msgs[0].all)
}

type countingCleaner struct{ calls chan int }

func (c *countingCleaner) Cleanup(_ context.Context, days int) (int64, error) {
	c.calls <- days
	return 0, nil
}

func TestHostMonitorRunsRetention(t *testing.T) {
	cleaner := &countingCleaner{calls: make(chan int, 10)}
	hm := NewHostMonitor(newFakeHostStore(), cleaner, &fakeHub{}, HostMonitorConfig{
		StaleAfter:        time.Minute,
		RetentionInterval: 10 * time.Millisecond,
	}, logger.Discard())

	hm.Start()
	defer hm.Shutdown()

	select {
	case days := <-cleaner.calls:
		assert.Equal(t, 0, days)
	case <-time.After(2 * time.Second):
		t.Fatal("retention cleanup never ran")
	}
}
