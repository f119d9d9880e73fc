package alerting

import (
	"context"
	"sync/atomic"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/metrics"
	"HomelabMonitorAPI/internal/models"

	"golang.org/x/sync/singleflight"
)

// RuleSource is the store the cache reads from.
type RuleSource interface {
	FetchEnabledRules(ctx context.Context) ([]models.AlertRule, error)
}

// Rule is an enabled AlertRule with its condition already decoded.
type Rule struct {
	ID         string
	Name       string
	MetricType string
	Severity   string
	Condition  Condition
	// Cooldown is nil when the rule has no cooldown of its own.
	Cooldown *time.Duration
	HostID   *string
}

// AppliesTo reports whether the rule is scoped to hostID (or to every host).
func (r Rule) AppliesTo(hostID string) bool {
	return r.HostID == nil || *r.HostID == "" || *r.HostID == hostID
}

type snapshot struct {
	rules     []Rule
	fetchedAt time.Time
}

// RuleCache serves enabled rules from an immutable snapshot that is swapped
// whole on refresh.
type RuleCache struct {
	source       RuleSource
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger

	current atomic.Pointer[snapshot]
	dirty   atomic.Bool
	group   singleflight.Group
}

type RuleCacheOption func(*RuleCache)

func WithClock(now func() time.Time) RuleCacheOption {
	return func(c *RuleCache) { c.now = now }
}

func WithFetchTimeout(d time.Duration) RuleCacheOption {
	return func(c *RuleCache) { c.fetchTimeout = d }
}

func NewRuleCache(source RuleSource, ttl time.Duration, log *logger.Logger, opts ...RuleCacheOption) *RuleCache {
	c := &RuleCache{
		source:       source,
		ttl:          ttl,
		fetchTimeout: 5 * time.Second,
		now:          time.Now,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the active rules, refreshing first when the snapshot is missing,
// older than the TTL, or invalidated. It never fails: on a store error the
// previous snapshot (or nothing) is returned.
func (c *RuleCache) Get(ctx context.Context) []Rule {
	if snap := c.current.Load(); snap != nil && !c.dirty.Load() && c.now().Sub(snap.fetchedAt) <= c.ttl {
		return snap.rules
	}

	v, _, _ := c.group.Do("rules", func() (interface{}, error) {
		return c.refresh(ctx), nil
	})
	return v.([]Rule)
}

// Invalidate forces the next Get to hit the store.
func (c *RuleCache) Invalidate() {
	c.dirty.Store(true)
}

func (c *RuleCache) refresh(ctx context.Context) []Rule {
	c.dirty.Store(false)

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	stored, err := c.source.FetchEnabledRules(fetchCtx)
	if err != nil {
		c.dirty.Store(true)
		metrics.RuleCacheRefreshes.WithLabelValues("error").Inc()
		c.log.Warn("Could not refresh alert rules, serving previous snapshot: %v", err)
		if prev := c.current.Load(); prev != nil {
			return prev.rules
		}
		return nil
	}

	rules := c.compile(stored)
	c.current.Store(&snapshot{rules: rules, fetchedAt: c.now()})

	metrics.RuleCacheRefreshes.WithLabelValues("ok").Inc()
	metrics.RuleCacheRules.Set(float64(len(rules)))
	c.log.Debug("Refreshed alert rules cache: %d rules", len(rules))
	return rules
}

func (c *RuleCache) compile(stored []models.AlertRule) []Rule {
	rules := make([]Rule, 0, len(stored))
	for _, r := range stored {
		if !r.Enabled {
			continue
		}
		cond, err := DecodeCondition(r.Condition)
		if err != nil {
			c.log.Warn("Skipping rule %s (%s): %v", r.ID, r.Name, err)
			continue
		}
		if !KnownOperator(cond.Operator) {
			c.log.Warn("Rule %s (%s) uses unknown operator %q and will never fire", r.ID, r.Name, cond.Operator)
		}
		rule := Rule{
			ID:         r.ID,
			Name:       r.Name,
			MetricType: r.MetricType,
			Severity:   r.Severity,
			Condition:  cond,
			HostID:     r.HostID,
		}
		if r.CooldownMinutes != nil {
			d := time.Duration(*r.CooldownMinutes) * time.Minute
			rule.Cooldown = &d
		}
		rules = append(rules, rule)
	}
	return rules
}

// MaxCooldown is the largest cooldown among cached rules, or fallback if larger.
func (c *RuleCache) MaxCooldown(fallback time.Duration) time.Duration {
	max := fallback
	snap := c.current.Load()
	if snap == nil {
		return max
	}
	for _, r := range snap.rules {
		if r.Cooldown != nil && *r.Cooldown > max {
			max = *r.Cooldown
		}
	}
	return max
}
