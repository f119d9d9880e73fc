package service

import (
	"context"
	"sync"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/websocket"
)

type StaleMarker interface {
	MarkStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type RetentionCleaner interface {
	Cleanup(ctx context.Context, days int) (int64, error)
}

type HostMonitorConfig struct {
	StaleAfter        time.Duration
	SweepInterval     time.Duration
	RetentionInterval time.Duration
	OpTimeout         time.Duration
}

// HostMonitor runs the background housekeeping for hosts: marking silent
// hosts unknown and trimming old metrics.
type HostMonitor struct {
	hosts   StaleMarker
	cleaner RetentionCleaner
	hub     Broadcaster
	cfg     HostMonitorConfig
	now     func() time.Time
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHostMonitor(hosts StaleMarker, cleaner RetentionCleaner, hub Broadcaster, cfg HostMonitorConfig, log *logger.Logger) *HostMonitor {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &HostMonitor{
		hosts:   hosts,
		cleaner: cleaner,
		hub:     hub,
		cfg:     cfg,
		now:     time.Now,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (hm *HostMonitor) Start() {
	hm.log.Info("Starting Host Monitor (stale after %s)", hm.cfg.StaleAfter)

	if hm.cfg.SweepInterval > 0 {
		hm.wg.Add(1)
		go hm.loop("stale sweep", hm.cfg.SweepInterval, func(ctx context.Context) {
			if _, err := hm.SweepStale(ctx); err != nil {
				hm.log.Error("Stale host sweep failed: %v", err)
			}
		})
	}

	if hm.cleaner != nil && hm.cfg.RetentionInterval > 0 {
		hm.wg.Add(1)
		go hm.loop("retention", hm.cfg.RetentionInterval, func(ctx context.Context) {
			if _, err := hm.cleaner.Cleanup(ctx, 0); err != nil {
				hm.log.Error("Metric retention cleanup failed: %v", err)
			}
		})
	}
}

func (hm *HostMonitor) Shutdown() {
	hm.log.Info("Shutting down Host Monitor...")
	hm.cancel()
	hm.wg.Wait()
	hm.log.Info("Host Monitor stopped gracefully")
}

func (hm *HostMonitor) loop(name string, interval time.Duration, fn func(ctx context.Context)) {
	defer hm.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-hm.ctx.Done():
			hm.log.Debug("%s worker stopping", name)
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(hm.ctx, hm.cfg.OpTimeout)
			fn(ctx)
			cancel()
		}
	}
}

// SweepStale marks hosts silent for longer than StaleAfter as unknown and
// announces each change.
func (hm *HostMonitor) SweepStale(ctx context.Context) (int, error) {
	cutoff := hm.now().UTC().Add(-hm.cfg.StaleAfter)

	ids, err := hm.hosts.MarkStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		hm.hub.BroadcastAll(websocket.HostStatusMessage(id, models.HostStatusUnknown))
	}
	if len(ids) > 0 {
		hm.log.Warn("Marked %d hosts %s (no data since %s)", len(ids), models.HostStatusUnknown, cutoff.Format(time.RFC3339))
	}
	return len(ids), nil
}
