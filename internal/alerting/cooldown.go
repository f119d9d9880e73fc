package alerting

import (
	"sync"
	"time"
)

type cooldownKey struct {
	ruleID string
	hostID string
}

// CooldownTracker remembers when each (rule, host) pair last fired.
// Entries live in memory only and are lost on restart.
type CooldownTracker struct {
	mu      sync.Mutex
	entries map[cooldownKey]time.Time
	now     func() time.Time
}

func NewCooldownTracker(now func() time.Time) *CooldownTracker {
	if now == nil {
		now = time.Now
	}
	return &CooldownTracker{
		entries: make(map[cooldownKey]time.Time),
		now:     now,
	}
}

// InCooldown is true iff the pair fired less than d ago. A zero or negative d
// never suppresses.
func (t *CooldownTracker) InCooldown(ruleID, hostID string, d time.Duration) bool {
	if d <= 0 {
		return false
	}

	t.mu.Lock()
	last, ok := t.entries[cooldownKey{ruleID, hostID}]
	t.mu.Unlock()

	return ok && t.now().Sub(last) < d
}

func (t *CooldownTracker) RecordTrigger(ruleID, hostID string) {
	t.mu.Lock()
	t.entries[cooldownKey{ruleID, hostID}] = t.now()
	t.mu.Unlock()
}

// Claim is a cooldown stamp taken by TryAcquire. Release undoes it.
type Claim struct {
	key     cooldownKey
	stamp   time.Time
	prev    time.Time
	hadPrev bool
}

// TryAcquire checks the pair and, when it is not cooling down, stamps it in
// the same critical section. Concurrent callers for one pair therefore see at
// most one success per window.
func (t *CooldownTracker) TryAcquire(ruleID, hostID string, d time.Duration) (Claim, bool) {
	key := cooldownKey{ruleID, hostID}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.entries[key]
	if d > 0 && ok && now.Sub(prev) < d {
		return Claim{}, false
	}
	t.entries[key] = now
	return Claim{key: key, stamp: now, prev: prev, hadPrev: ok}, true
}

// Release restores the stamp the claim replaced. It is a no-op when a later
// trigger has stamped the pair since.
func (t *CooldownTracker) Release(c Claim) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.entries[c.key]; !ok || !cur.Equal(c.stamp) {
		return
	}
	if c.hadPrev {
		t.entries[c.key] = c.prev
	} else {
		delete(t.entries, c.key)
	}
}

// Prune drops entries older than maxAge and returns how many were removed.
func (t *CooldownTracker) Prune(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for k, last := range t.entries {
		if !last.After(cutoff) {
			delete(t.entries, k)
			removed++
		}
	}
	return removed
}

func (t *CooldownTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
