package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"HomelabMonitorAPI/internal/config"
	"HomelabMonitorAPI/internal/handler"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/websocket"

	"github.com/stretchr/testify/assert"
)

type okDB struct{}

func (okDB) Health(context.Context) error { return nil }

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{
			APIKeyHeader:       "X-API-Key",
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedMethods: []string{"GET", "POST"},
		},
	}
	log := logger.Discard()
	hub := websocket.NewHub(log)
	t.Cleanup(hub.Close)

	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	srv := New(cfg, log)
	srv.RegisterHandlers(Handlers{
		Hosts:      handler.NewHostHandler(nil, log),
		Metrics:    handler.NewMetricHandler(nil, log),
		AlertRules: handler.NewAlertRuleHandler(nil, log),
		Alerts:     handler.NewAlertHandler(nil, log),
		Analytics:  handler.NewAnalyticsHandler(nil, log),
		Health:     handler.NewHealthHandler(okDB{}, log),
		WS:         handler.NewWSHandler(hub, websocket.DefaultConfig(), log),
		AgentAuth:  deny,
	})
	return srv.Router()
}

func TestRoutes(t *testing.T) {
	h := newTestServer(t)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/api/v1/metrics", http.StatusUnauthorized},
		{http.MethodOptions, "/api/v1/hosts", http.StatusNoContent},
		{http.MethodGet, "/api/v1/clusters", http.StatusServiceUnavailable},
		{http.MethodPost, "/api/v1/clusters/c1/sync", http.StatusServiceUnavailable},
		{http.MethodOptions, "/api/v1/clusters", http.StatusNoContent},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestDisabledClustersExplainThemselves(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clusters/c1/pods", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Kubernetes monitoring is disabled")
}

func TestPreflightCarriesCORSHeaders(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "http://dashboard.lan")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}
