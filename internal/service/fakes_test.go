package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"HomelabMonitorAPI/internal/alerting"
	"HomelabMonitorAPI/internal/kube"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/repository"
	"HomelabMonitorAPI/internal/websocket"
)

var errBoom = errors.New("boom")

type sent struct {
	hostID string
	all    bool
	msg    websocket.Message
}

type fakeHub struct {
	mu   sync.Mutex
	sent []sent
}

func (h *fakeHub) BroadcastAll(msg websocket.Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{all: true, msg: msg})
	return 1
}

func (h *fakeHub) PublishHostScoped(hostID string, msg websocket.Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{hostID: hostID, msg: msg})
	return 1
}

func (h *fakeHub) ofType(t string) []sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sent
	for _, s := range h.sent {
		if s.msg.Type == t {
			out = append(out, s)
		}
	}
	return out
}

type fakeMetricStore struct {
	mu        sync.Mutex
	inserted  []models.Metric
	insertErr error
	lastQuery *models.MetricQuery
	cutoff    time.Time
}

func (f *fakeMetricStore) InsertBatch(_ context.Context, rows []models.Metric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeMetricStore) Query(_ context.Context, q *models.MetricQuery) ([]models.Metric, error) {
	f.lastQuery = q
	return []models.Metric{}, nil
}

func (f *fakeMetricStore) Latest(context.Context, string) ([]models.Metric, error) {
	return []models.Metric{}, nil
}

func (f *fakeMetricStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

type fakeHostStore struct {
	mu       sync.Mutex
	hosts    map[string]*models.Host
	touched  []string
	touchErr error
	stale    []string
}

func newFakeHostStore() *fakeHostStore {
	return &fakeHostStore{hosts: make(map[string]*models.Host)}
}

func (f *fakeHostStore) Create(_ context.Context, h *models.Host) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.hosts {
		if existing.Name == h.Name {
			return repository.ErrConflict
		}
	}
	cp := *h
	f.hosts[h.ID] = &cp
	return nil
}

func (f *fakeHostStore) GetByID(_ context.Context, id string) (*models.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHostStore) GetByAPIKeyHash(_ context.Context, hash string) (*models.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hosts {
		if h.APIKeyHash == hash {
			cp := *h
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeHostStore) List(context.Context, int, int) ([]models.Host, error) {
	return []models.Host{}, nil
}

func (f *fakeHostStore) Update(_ context.Context, id string, req *models.UpdateHostRequest) (*models.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Name != nil {
		h.Name = *req.Name
	}
	if req.Status != nil {
		h.Status = *req.Status
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHostStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hosts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.hosts, id)
	return nil
}

func (f *fakeHostStore) UpdateLastSeen(_ context.Context, id string, _ time.Time, status string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return "", f.touchErr
	}
	f.touched = append(f.touched, id)
	h, ok := f.hosts[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	prev := h.Status
	h.Status = status
	return prev, nil
}

func (f *fakeHostStore) MarkStale(context.Context, time.Time) ([]string, error) {
	return f.stale, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []alerting.Job
	full bool
}

func (q *fakeQueue) Enqueue(job alerting.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

type fakeRuleStore struct {
	mu    sync.Mutex
	rules map[string]*models.AlertRule
	count int
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: make(map[string]*models.AlertRule)}
}

func (f *fakeRuleStore) List(context.Context) ([]models.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.AlertRule{}
	for _, r := range f.rules {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRuleStore) GetByID(_ context.Context, id string) (*models.AlertRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuleStore) Create(_ context.Context, r *models.AlertRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.rules[r.ID] = &cp
	return nil
}

func (f *fakeRuleStore) Update(_ context.Context, r *models.AlertRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[r.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *r
	f.rules[r.ID] = &cp
	return nil
}

func (f *fakeRuleStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeRuleStore) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rules) + f.count, nil
}

type fakeCache struct{ invalidations int }

func (c *fakeCache) Invalidate() { c.invalidations++ }

type publishedChange struct{ ruleID, action string }

type fakePublisher struct {
	changes []publishedChange
	err     error
}

func (p *fakePublisher) PublishRuleChange(_ context.Context, ruleID, action string) error {
	p.changes = append(p.changes, publishedChange{ruleID, action})
	return p.err
}

type fakeAlertRepo struct {
	mu        sync.Mutex
	alerts    map[string]*models.Alert
	createErr error
	lastList  models.AlertFilter
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[string]*models.Alert)}
}

func (f *fakeAlertRepo) PersistAlerts(ctx context.Context, alerts []*models.Alert) error {
	for _, a := range alerts {
		if err := f.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAlertRepo) Create(_ context.Context, a *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *a
	f.alerts[a.ID] = &cp
	return nil
}

func (f *fakeAlertRepo) GetByID(_ context.Context, id string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAlertRepo) List(_ context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	f.lastList = filter
	return []models.Alert{}, nil
}

func (f *fakeAlertRepo) Acknowledge(_ context.Context, id, by string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now()
	a.AcknowledgedBy = &by
	a.AcknowledgedAt = &now
	cp := *a
	return &cp, nil
}

func (f *fakeAlertRepo) Resolve(_ context.Context, id string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if a.ResolvedAt == nil {
		now := time.Now()
		a.ResolvedAt = &now
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAlertRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alerts, id)
	return nil
}

func (f *fakeAlertRepo) GetStatistics(context.Context) (*models.AlertStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.AlertStats{Total: len(f.alerts), BySeverity: map[string]int{}}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []*models.Alert
}

func (n *fakeNotifier) NotifyAlert(a *models.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

type fakeClusterStore struct {
	clusters map[string]*models.Cluster
	listErr  error
}

func (f *fakeClusterStore) List(context.Context) ([]models.Cluster, error) {
	out := []models.Cluster{}
	for _, c := range f.clusters {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeClusterStore) ListEnabled(ctx context.Context) ([]models.Cluster, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	all, _ := f.List(ctx)
	out := []models.Cluster{}
	for _, c := range all {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClusterStore) GetByID(_ context.Context, id string) (*models.Cluster, error) {
	c, ok := f.clusters[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClusterStore) Create(_ context.Context, c *models.Cluster) error {
	cp := *c
	f.clusters[c.ID] = &cp
	return nil
}

func (f *fakeClusterStore) Update(_ context.Context, id string, req *models.UpdateClusterRequest) (*models.Cluster, error) {
	c, ok := f.clusters[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Enabled != nil {
		c.Enabled = *req.Enabled
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClusterStore) Delete(_ context.Context, id string) error {
	delete(f.clusters, id)
	return nil
}

type fakeReader struct {
	id  string
	err error
}

func (r *fakeReader) Summarize(context.Context) (*kube.Summary, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &kube.Summary{ClusterID: r.id, TotalNodes: 1, ReadyNodes: 1, Status: kube.ClusterHealthy}, nil
}

func (r *fakeReader) Namespaces(context.Context) ([]string, error) { return []string{"default"}, nil }
func (r *fakeReader) Nodes(context.Context) ([]kube.Node, error)    { return nil, nil }
func (r *fakeReader) Pods(context.Context, string) ([]kube.Pod, error) {
	return nil, nil
}
func (r *fakeReader) Deployments(context.Context, string) ([]kube.Deployment, error) {
	return nil, nil
}
func (r *fakeReader) Services(context.Context, string) ([]kube.Service, error) {
	return nil, nil
}
func (r *fakeReader) Events(context.Context, string, int) ([]kube.Event, error) {
	return nil, nil
}

type fakeAnalytics struct {
	mu     sync.Mutex
	series []repository.SeriesQuery
}

func (f *fakeAnalytics) MetricSeries(_ context.Context, q repository.SeriesQuery) ([]repository.TimeSeriesPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series = append(f.series, q)
	return []repository.TimeSeriesPoint{{Timestamp: q.Start, Avg: 1, Samples: 1}}, nil
}

func (f *fakeAnalytics) FleetHealth(_ context.Context, window time.Duration) (*repository.FleetHealth, error) {
	return &repository.FleetHealth{TotalHosts: 1, HealthScore: 100}, nil
}
