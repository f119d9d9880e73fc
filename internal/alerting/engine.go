package alerting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/metrics"
	"HomelabMonitorAPI/internal/models"

	"github.com/google/uuid"
)

// AlertStore persists every alert of one evaluation atomically.
type AlertStore interface {
	PersistAlerts(ctx context.Context, alerts []*models.Alert) error
}

// Engine matches metric data against the cached rules. It does not notify
// anyone; callers publish the returned alerts.
type Engine struct {
	rules           *RuleCache
	cooldowns       *CooldownTracker
	store           AlertStore
	defaultCooldown time.Duration
	now             func() time.Time
	log             *logger.Logger
}

type EngineConfig struct {
	DefaultCooldown time.Duration
	Now             func() time.Time
}

func NewEngine(rules *RuleCache, cooldowns *CooldownTracker, store AlertStore, cfg EngineConfig, log *logger.Logger) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		rules:           rules,
		cooldowns:       cooldowns,
		store:           store,
		defaultCooldown: cfg.DefaultCooldown,
		now:             now,
		log:             log,
	}
}

// Evaluate runs every matching rule against one metric type of one host and
// returns the alerts it created, in rule order. A firing rule claims its
// cooldown before the write; the claims are released if the write fails.
func (e *Engine) Evaluate(ctx context.Context, hostID, metricType string, data map[string]interface{}) ([]*models.Alert, error) {
	rules := e.rules.Get(ctx)

	var (
		triggered []*models.Alert
		fired     []Rule
		claims    []Claim
	)

	for _, rule := range rules {
		if rule.MetricType != metricType || !rule.AppliesTo(hostID) {
			continue
		}

		cond := rule.Condition
		if !KnownOperator(cond.Operator) {
			continue
		}

		value, ok := resolveField(data, metricType, cond.Field)
		if !ok {
			continue
		}

		if !Compare(value, cond.Operator, cond.Threshold) {
			continue
		}

		claim, ok := e.cooldowns.TryAcquire(rule.ID, hostID, e.cooldownFor(rule))
		if !ok {
			continue
		}

		triggered = append(triggered, e.buildAlert(rule, hostID, value))
		fired = append(fired, rule)
		claims = append(claims, claim)
	}

	if len(triggered) == 0 {
		return nil, nil
	}

	if err := e.store.PersistAlerts(ctx, triggered); err != nil {
		for _, c := range claims {
			e.cooldowns.Release(c)
		}
		return nil, fmt.Errorf("failed to persist %d alerts for host %s: %w", len(triggered), hostID, err)
	}

	for i, rule := range fired {
		metrics.AlertsTriggered.WithLabelValues(triggered[i].Severity).Inc()
		e.log.Info("Alert triggered: %s for host %s (%s=%.2f %s %s)",
			rule.Name, hostID, rule.Condition.Field, triggered[i].Metadata["metric_value"],
			rule.Condition.Operator, formatThreshold(rule.Condition.Threshold))
	}
	metrics.CooldownEntries.Set(float64(e.cooldowns.Len()))

	return triggered, nil
}

func (e *Engine) cooldownFor(rule Rule) time.Duration {
	if rule.Cooldown != nil {
		return *rule.Cooldown
	}
	return e.defaultCooldown
}

func (e *Engine) buildAlert(rule Rule, hostID string, value float64) *models.Alert {
	ruleID := rule.ID
	cond := rule.Condition
	return &models.Alert{
		ID:       uuid.NewString(),
		HostID:   hostID,
		RuleID:   &ruleID,
		Severity: rule.Severity,
		Message: fmt.Sprintf("%s: %s is %.2f (%s %s)",
			rule.Name, cond.Field, value, cond.Operator, formatThreshold(cond.Threshold)),
		Metadata: map[string]interface{}{
			"metric_value":    value,
			"threshold_value": cond.Threshold,
			"field":           cond.Field,
			"operator":        cond.Operator,
		},
		TriggeredAt: e.now().UTC(),
	}
}

// resolveField looks the path up in data; a path that names the metric type
// as its first segment ("cpu.percent" for cpu data) is retried without it.
func resolveField(data map[string]interface{}, metricType, field string) (float64, bool) {
	if v, ok := ExtractValue(data, field); ok {
		return v, true
	}
	if rest, found := strings.CutPrefix(field, metricType+"."); found {
		return ExtractValue(data, rest)
	}
	return 0, false
}

func formatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// PruneCooldowns forgets cooldown entries older than the longest cooldown in use.
func (e *Engine) PruneCooldowns() int {
	n := e.cooldowns.Prune(e.rules.MaxCooldown(e.defaultCooldown))
	metrics.CooldownEntries.Set(float64(e.cooldowns.Len()))
	return n
}
