package alerting

import (
	"context"
	"encoding/json"
	"sync"

	"HomelabMonitorAPI/internal/models"
)

type fakeRuleSource struct {
	mu    sync.Mutex
	rules []models.AlertRule
	err   error
	calls int
}

func (s *fakeRuleSource) FetchEnabledRules(ctx context.Context) ([]models.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.AlertRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

func (s *fakeRuleSource) set(rules ...models.AlertRule) {
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
}

func (s *fakeRuleSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeRuleSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeAlertStore struct {
	mu      sync.Mutex
	batches [][]*models.Alert
	err     error
}

func (s *fakeAlertStore) PersistAlerts(ctx context.Context, alerts []*models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, alerts)
	return nil
}

func (s *fakeAlertStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeAlertStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func rule(id, metricType, condition, severity string) models.AlertRule {
	return models.AlertRule{
		ID:         id,
		Name:       id,
		MetricType: metricType,
		Condition:  json.RawMessage(condition),
		Severity:   severity,
		Enabled:    true,
	}
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

// gatedAlertStore blocks its first write until gate is closed.
type gatedAlertStore struct {
	fakeAlertStore
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedAlertStore() *gatedAlertStore {
	return &gatedAlertStore{entered: make(chan struct{}), gate: make(chan struct{})}
}

func (s *gatedAlertStore) PersistAlerts(ctx context.Context, alerts []*models.Alert) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.gate
	}
	return s.fakeAlertStore.PersistAlerts(ctx, alerts)
}
