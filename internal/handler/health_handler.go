package handler

import (
	"context"
	"net/http"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"

	"github.com/gorilla/mux"
)

type DBPinger interface {
	Health(ctx context.Context) error
}

type ConnectionChecker interface {
	IsConnected() bool
}

type HealthHandler struct {
	db     DBPinger
	checks map[string]ConnectionChecker
	now    func() time.Time
	log    *logger.Logger
}

func NewHealthHandler(db DBPinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		checks: make(map[string]ConnectionChecker),
		now:    time.Now,
		log:    log,
	}
}

// WithDependency adds an optional broker to health and readiness reporting.
func (h *HealthHandler) WithDependency(name string, c ConnectionChecker) *HealthHandler {
	h.checks[name] = c
	return h
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func (h *HealthHandler) probe(ctx context.Context) map[string]bool {
	services := map[string]bool{
		"database": h.db.Health(ctx) == nil,
	}
	for name, c := range h.checks {
		services[name] = c.IsConnected()
	}
	return services
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Services:  h.probe(ctx),
	}

	for name, ok := range response.Services {
		if !ok {
			response.Status = "degraded"
			h.log.Warn("Health check degraded: %s unavailable", name)
		}
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, ok := range h.probe(ctx) {
		if !ok {
			h.log.Warn("Readiness check failed: %s unavailable", name)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
