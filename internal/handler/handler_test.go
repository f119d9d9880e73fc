package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"HomelabMonitorAPI/internal/kube"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/middleware"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/repository"
	"HomelabMonitorAPI/internal/service"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type stubHosts struct {
	hosts     map[string]*models.Host
	createErr error
	listSkip  int
	listLimit int
}

func (s *stubHosts) Create(_ context.Context, req *models.CreateHostRequest) (*models.HostWithAPIKey, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.HostWithAPIKey{Host: models.Host{ID: "h-new", Name: req.Name}, APIKey: "hk_secret"}, nil
}

func (s *stubHosts) Get(_ context.Context, id string) (*models.Host, error) {
	h, ok := s.hosts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return h, nil
}

func (s *stubHosts) List(_ context.Context, skip, limit int) ([]models.Host, error) {
	s.listSkip, s.listLimit = skip, limit
	return nil, nil
}

func (s *stubHosts) Update(_ context.Context, id string, req *models.UpdateHostRequest) (*models.Host, error) {
	return s.Get(context.Background(), id)
}

func (s *stubHosts) Delete(_ context.Context, id string) error {
	if _, ok := s.hosts[id]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func hostRouter(s *stubHosts) *mux.Router {
	r := mux.NewRouter()
	NewHostHandler(s, logger.Discard()).RegisterRoutes(r)
	return r
}

func TestHostHandlerCRUD(t *testing.T) {
	s := &stubHosts{hosts: map[string]*models.Host{"h1": {ID: "h1", Name: "nas"}}}
	r := hostRouter(s)

	rec := do(t, r, http.MethodPost, "/hosts", models.CreateHostRequest{Name: "pi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.HostWithAPIKey
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "hk_secret", created.APIKey)

	rec = do(t, r, http.MethodGet, "/hosts/h1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/hosts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodDelete, "/hosts/h1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, r, http.MethodGet, "/hosts?skip=5&limit=20", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 5, s.listSkip)
	assert.Equal(t, 20, s.listLimit)

	rec = do(t, r, http.MethodGet, "/hosts?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHostHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{repository.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: name is required", service.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := hostRouter(&stubHosts{createErr: tc.err})
		rec := do(t, r, http.MethodPost, "/hosts", models.CreateHostRequest{Name: "x"})
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}

	rec := do(t, hostRouter(&stubHosts{}), http.MethodPost, "/hosts", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubMetrics struct {
	ingestedFor string
	source      string
	query       *models.MetricQuery
	cleanupDays int
}

func (s *stubMetrics) Ingest(_ context.Context, hostID string, p *models.MetricPayload, source string) (*models.IngestResponse, error) {
	s.ingestedFor, s.source = hostID, source
	return &models.IngestResponse{Status: "ok", HostID: hostID, Stored: 1, MetricTypes: []string{"cpu"}}, nil
}

func (s *stubMetrics) Query(_ context.Context, q *models.MetricQuery) ([]models.Metric, error) {
	s.query = q
	return []models.Metric{{HostID: q.HostID, MetricType: "cpu"}}, nil
}

func (s *stubMetrics) Latest(_ context.Context, hostID string) ([]models.Metric, error) {
	return nil, nil
}

func (s *stubMetrics) Cleanup(_ context.Context, days int) (int64, error) {
	s.cleanupDays = days
	return 42, nil
}

type keyAuth map[string]*models.Host

func (k keyAuth) Authenticate(_ context.Context, key string) (*models.Host, error) {
	if h, ok := k[key]; ok {
		return h, nil
	}
	return nil, service.ErrUnauthorized
}

func metricRouter(s *stubMetrics) *mux.Router {
	r := mux.NewRouter()
	auth := middleware.AgentAuth(keyAuth{"hk_a": {ID: "h1"}}, "", service.ErrUnauthorized, logger.Discard())
	NewMetricHandler(s, logger.Discard()).RegisterRoutes(r, auth)
	return r
}

func TestMetricIngestRequiresAgentKey(t *testing.T) {
	s := &stubMetrics{}
	r := metricRouter(s)
	body := `{"metrics":{"cpu":{"percent":10}}}`

	rec := do(t, r, http.MethodPost, "/metrics", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodPost, "/metrics", body, middleware.APIKeyHeader, "hk_wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodPost, "/metrics", body, middleware.APIKeyHeader, "hk_a")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "h1", s.ingestedFor)
	assert.Equal(t, service.SourceHTTP, s.source)
}

func TestMetricQueryParsesFilters(t *testing.T) {
	s := &stubMetrics{}
	r := metricRouter(s)

	rec := do(t, r, http.MethodGet, "/metrics?host_id=h1&metric_type=cpu&start_time=2026-01-01T00:00:00Z&limit=50&offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, s.query)
	assert.Equal(t, "h1", s.query.HostID)
	assert.Equal(t, "cpu", s.query.MetricType)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), s.query.Start)
	assert.True(t, s.query.End.IsZero())
	assert.Equal(t, 50, s.query.Limit)
	assert.Equal(t, 10, s.query.Offset)

	var resp models.MetricQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)

	rec = do(t, r, http.MethodGet, "/metrics?start_time=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricLatestAndCleanup(t *testing.T) {
	s := &stubMetrics{}
	r := metricRouter(s)

	rec := do(t, r, http.MethodGet, "/metrics/latest/h1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, r, http.MethodDelete, "/metrics/cleanup?days=7", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, s.cleanupDays)
	assert.JSONEq(t, `{"deleted": 42}`, rec.Body.String())
}

type stubAlerts struct {
	filter   models.AlertFilter
	ackBy    string
	testHost string
}

func (s *stubAlerts) Create(_ context.Context, req *models.CreateAlertRequest) (*models.Alert, error) {
	if req.HostID == "" {
		return nil, fmt.Errorf("%w: host_id is required", service.ErrInvalidInput)
	}
	return &models.Alert{ID: "a1", HostID: req.HostID, Severity: req.Severity}, nil
}

func (s *stubAlerts) Get(_ context.Context, id string) (*models.Alert, error) {
	return nil, repository.ErrNotFound
}

func (s *stubAlerts) List(_ context.Context, f models.AlertFilter) ([]models.Alert, error) {
	s.filter = f
	return nil, nil
}

func (s *stubAlerts) Acknowledge(_ context.Context, id, by string) (*models.Alert, error) {
	s.ackBy = by
	return &models.Alert{ID: id, AcknowledgedBy: &by}, nil
}

func (s *stubAlerts) Resolve(_ context.Context, id string) (*models.Alert, error) {
	return nil, repository.ErrNotFound
}

func (s *stubAlerts) Delete(_ context.Context, id string) error { return nil }

func (s *stubAlerts) Stats(_ context.Context) (*models.AlertStats, error) {
	return &models.AlertStats{Total: 3, Active: 1, BySeverity: map[string]int{"CRITICAL": 1}}, nil
}

func (s *stubAlerts) SendTestAlert(hostID string) { s.testHost = hostID }

func TestAlertHandler(t *testing.T) {
	s := &stubAlerts{}
	r := mux.NewRouter()
	NewAlertHandler(s, logger.Discard()).RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/alerts?host_id=h1&severity=CRITICAL&active_only=true&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AlertFilter{HostID: "h1", Severity: "CRITICAL", ActiveOnly: true, Limit: 10}, s.filter)

	rec = do(t, r, http.MethodGet, "/alerts?active_only=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/alerts/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":3`)

	rec = do(t, r, http.MethodPost, "/alerts", models.CreateAlertRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/alerts", models.CreateAlertRequest{HostID: "h1", Severity: "WARNING"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPost, "/alerts/a1/acknowledge", models.AcknowledgeAlertRequest{AcknowledgedBy: "ops"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", s.ackBy)

	rec = do(t, r, http.MethodPost, "/alerts/a1/resolve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, "/alerts/a1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodPost, "/alerts/test?host_id=h9", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "h9", s.testHost)

	rec = do(t, r, http.MethodDelete, "/alerts/a1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type stubRules struct {
	created *models.CreateAlertRuleRequest
}

func (s *stubRules) List(context.Context) ([]models.AlertRule, error) { return nil, nil }

func (s *stubRules) Get(_ context.Context, id string) (*models.AlertRule, error) {
	return &models.AlertRule{ID: id}, nil
}

func (s *stubRules) Create(_ context.Context, req *models.CreateAlertRuleRequest) (*models.AlertRule, error) {
	s.created = req
	if len(req.Condition) == 0 {
		return nil, fmt.Errorf("%w: condition is required", service.ErrInvalidInput)
	}
	return &models.AlertRule{ID: "r1", Name: req.Name}, nil
}

func (s *stubRules) Update(_ context.Context, id string, req *models.UpdateAlertRuleRequest) (*models.AlertRule, error) {
	return nil, repository.ErrNotFound
}

func (s *stubRules) Delete(context.Context, string) error { return nil }

func TestAlertRuleHandler(t *testing.T) {
	s := &stubRules{}
	r := mux.NewRouter()
	NewAlertRuleHandler(s, logger.Discard()).RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/alert-rules", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/alert-rules", `{"name":"cpu","metric_type":"cpu","condition":{"field":"percent","operator":">","threshold":90},"severity":"WARNING"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, s.created)
	assert.JSONEq(t, `{"field":"percent","operator":">","threshold":90}`, string(s.created.Condition))

	rec = do(t, r, http.MethodPost, "/alert-rules", `{"name":"cpu"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPut, "/alert-rules/r9", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodDelete, "/alert-rules/r1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type stubReader struct {
	err error
}

func (s stubReader) Summarize(context.Context) (*kube.Summary, error) {
	return &kube.Summary{ClusterID: "c1"}, s.err
}
func (s stubReader) Namespaces(context.Context) ([]string, error) {
	return []string{"default", "kube-system"}, s.err
}
func (s stubReader) Nodes(context.Context) ([]kube.Node, error) { return nil, s.err }
func (s stubReader) Pods(_ context.Context, ns string) ([]kube.Pod, error) {
	return []kube.Pod{{Name: "web", Namespace: ns}}, s.err
}
func (s stubReader) Deployments(context.Context, string) ([]kube.Deployment, error) { return nil, s.err }
func (s stubReader) Services(context.Context, string) ([]kube.Service, error)       { return nil, s.err }
func (s stubReader) Events(context.Context, string, int) ([]kube.Event, error)      { return nil, s.err }

type stubClusters struct {
	reader  service.ClusterReader
	summary *kube.Summary
}

func (s *stubClusters) List(context.Context) ([]models.Cluster, error) { return nil, nil }
func (s *stubClusters) Get(_ context.Context, id string) (*models.Cluster, error) {
	return &models.Cluster{ID: id}, nil
}
func (s *stubClusters) Create(_ context.Context, req *models.CreateClusterRequest) (*models.Cluster, error) {
	return &models.Cluster{ID: "c1", Name: req.Name}, nil
}
func (s *stubClusters) Update(_ context.Context, id string, req *models.UpdateClusterRequest) (*models.Cluster, error) {
	return &models.Cluster{ID: id}, nil
}
func (s *stubClusters) Delete(context.Context, string) error { return nil }
func (s *stubClusters) Client(_ context.Context, id string) (service.ClusterReader, error) {
	if id != "c1" {
		return nil, repository.ErrNotFound
	}
	return s.reader, nil
}
func (s *stubClusters) Sync(ctx context.Context, id string) (*kube.Summary, error) {
	c, err := s.Client(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Summarize(ctx)
}
func (s *stubClusters) LastSummary(id string) (*kube.Summary, bool) {
	return s.summary, s.summary != nil
}

func TestClusterHandler(t *testing.T) {
	s := &stubClusters{reader: stubReader{}}
	r := mux.NewRouter()
	NewClusterHandler(s, logger.Discard()).RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/clusters/c1/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodPost, "/clusters/c1/sync", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/clusters/c1/namespaces", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["default","kube-system"]`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/clusters/c1/pods?namespace=apps", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"namespace":"apps"`)

	rec = do(t, r, http.MethodGet, "/clusters/c2/nodes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.reader = stubReader{err: errors.New("dial tcp: i/o timeout")}
	rec = do(t, r, http.MethodGet, "/clusters/c1/nodes", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, r, http.MethodGet, "/clusters/c1/events?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/clusters", models.CreateClusterRequest{Name: "lab"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

type pinger struct{ err error }

func (p pinger) Health(context.Context) error { return p.err }

type flag bool

func (f flag) IsConnected() bool { return bool(f) }

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(pinger{}, logger.Discard()).WithDependency("mqtt", flag(true))
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]bool{"database": true, "mqtt": true}, resp.Services)

	rec = do(t, r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h.WithDependency("nats", flag(false))
	rec = do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(t, r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandlerDatabaseDown(t *testing.T) {
	r := mux.NewRouter()
	NewHealthHandler(pinger{err: errors.New("down")}, logger.Discard()).RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubAnalytics struct {
	query repository.SeriesQuery
}

func (s *stubAnalytics) Series(_ context.Context, q repository.SeriesQuery) ([]repository.TimeSeriesPoint, error) {
	s.query = q
	if q.Field == "" {
		return nil, fmt.Errorf("%w: field is required", service.ErrInvalidInput)
	}
	return nil, nil
}

func (s *stubAnalytics) FleetHealth(context.Context) (*repository.FleetHealth, error) {
	return &repository.FleetHealth{TotalHosts: 2, HealthScore: 90}, nil
}

func TestAnalyticsHandler(t *testing.T) {
	s := &stubAnalytics{}
	r := mux.NewRouter()
	NewAnalyticsHandler(s, logger.Discard()).RegisterRoutes(r)

	rec := do(t, r, http.MethodGet, "/analytics/timeseries?host_id=h1&metric_type=memory&field=percent&bucket=15m", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 15*time.Minute, s.query.Bucket)
	assert.Equal(t, "memory", s.query.MetricType)

	rec = do(t, r, http.MethodGet, "/analytics/timeseries?host_id=h1&bucket=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/analytics/timeseries?host_id=h1&metric_type=cpu", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/analytics/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_hosts":2`)
}
