package websocket

import (
	"sync"
	"time"
)

// heartbeat decides when to ping an idle client and when an unanswered ping
// means the client is gone.
type heartbeat struct {
	mu          sync.Mutex
	idle        time.Duration
	pongTimeout time.Duration
	now         func() time.Time
	lastInbound time.Time
	pingSentAt  time.Time
}

func newHeartbeat(idle, pongTimeout time.Duration, now func() time.Time) *heartbeat {
	if now == nil {
		now = time.Now
	}
	return &heartbeat{
		idle:        idle,
		pongTimeout: pongTimeout,
		now:         now,
		lastInbound: now(),
	}
}

// touch records inbound traffic, which also answers any outstanding ping.
func (hb *heartbeat) touch() {
	hb.mu.Lock()
	hb.lastInbound = hb.now()
	hb.pingSentAt = time.Time{}
	hb.mu.Unlock()
}

// check reports whether a ping should be sent now, or whether the previous
// ping went unanswered for longer than the pong timeout.
func (hb *heartbeat) check() (sendPing, expired bool) {
	hb.mu.Lock()
	defer hb.mu.Unlock()

	now := hb.now()
	if !hb.pingSentAt.IsZero() {
		return false, now.Sub(hb.pingSentAt) >= hb.pongTimeout
	}
	if now.Sub(hb.lastInbound) >= hb.idle {
		hb.pingSentAt = now
		return true, false
	}
	return false, false
}

// tickInterval is how often the write pump should call check.
func (hb *heartbeat) tickInterval() time.Duration {
	d := hb.idle
	if hb.pongTimeout < d {
		d = hb.pongTimeout
	}
	d /= 4
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	return d
}
