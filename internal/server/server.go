package server

import (
	"context"
	"fmt"
	"net/http"

	"HomelabMonitorAPI/internal/config"
	"HomelabMonitorAPI/internal/handler"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/metrics"
	"HomelabMonitorAPI/internal/middleware"

	"github.com/gorilla/mux"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cfg        *config.Config
	log        *logger.Logger
}

// Handlers groups everything the router mounts. Clusters is nil when
// Kubernetes support is disabled; its paths then answer 503.
type Handlers struct {
	Hosts      *handler.HostHandler
	Metrics    *handler.MetricHandler
	AlertRules *handler.AlertRuleHandler
	Alerts     *handler.AlertHandler
	Clusters   *handler.ClusterHandler
	Analytics  *handler.AnalyticsHandler
	Health     *handler.HealthHandler
	WS         *handler.WSHandler

	AgentAuth func(http.Handler) http.Handler
}

func New(cfg *config.Config, log *logger.Logger) *Server {
	router := mux.NewRouter()

	server := &Server{
		router: router,
		cfg:    cfg,
		log:    log,
		httpServer: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
	}

	return server
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) RegisterHandlers(h Handlers) {
	s.router.Use(middleware.Recovery(s.log))

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.Use(middleware.RequestLogger(s.log))
	api.Use(middleware.CORS(s.cfg.Security.CORSAllowedOrigins, s.cfg.Security.CORSAllowedMethods, s.cfg.Security.APIKeyHeader))

	if s.cfg.Security.EnableRateLimit {
		api.Use(middleware.RateLimit(s.cfg.Security.RateLimitPerMinute))
	}

	// Preflight needs a matching route for the CORS middleware to run.
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	h.Hosts.RegisterRoutes(api)
	h.Metrics.RegisterRoutes(api, h.AgentAuth)
	h.AlertRules.RegisterRoutes(api)
	h.Alerts.RegisterRoutes(api)
	h.Analytics.RegisterRoutes(api)
	if h.Clusters != nil {
		h.Clusters.RegisterRoutes(api)
	} else {
		api.PathPrefix("/clusters").Handler(handler.Disabled("Kubernetes monitoring"))
	}

	h.Health.RegisterRoutes(s.router)
	h.WS.RegisterRoutes(s.router)
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	s.log.Info("All handlers registered")
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}
