package handler

import (
	"context"
	"net/http"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/middleware"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

type MetricAPI interface {
	Ingest(ctx context.Context, hostID string, payload *models.MetricPayload, source string) (*models.IngestResponse, error)
	Query(ctx context.Context, q *models.MetricQuery) ([]models.Metric, error)
	Latest(ctx context.Context, hostID string) ([]models.Metric, error)
	Cleanup(ctx context.Context, days int) (int64, error)
}

type MetricHandler struct {
	metrics MetricAPI
	log     *logger.Logger
}

func NewMetricHandler(metrics MetricAPI, log *logger.Logger) *MetricHandler {
	return &MetricHandler{metrics: metrics, log: log}
}

// RegisterRoutes mounts ingestion behind agentAuth; reads are open.
func (h *MetricHandler) RegisterRoutes(r *mux.Router, agentAuth func(http.Handler) http.Handler) {
	r.Handle("/metrics", agentAuth(http.HandlerFunc(h.Ingest))).Methods("POST")
	r.HandleFunc("/metrics", h.Query).Methods("GET")
	r.HandleFunc("/metrics/latest/{host_id}", h.Latest).Methods("GET")
	r.HandleFunc("/metrics/cleanup", h.Cleanup).Methods("DELETE")
}

func (h *MetricHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	host, ok := middleware.HostFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload models.MetricPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		h.log.Warn("Invalid metric payload from host %s: %v", host.ID, err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.metrics.Ingest(r.Context(), host.ID, &payload, service.SourceHTTP)
	if err != nil {
		respondServiceError(w, h.log, "ingest metrics", err)
		return
	}

	respondJSON(w, http.StatusCreated, resp)
}

func (h *MetricHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := &models.MetricQuery{
		HostID:     q.Get("host_id"),
		MetricType: q.Get("metric_type"),
	}

	var err error
	if query.Start, err = parseTime(q.Get("start_time")); err != nil {
		respondError(w, http.StatusBadRequest, "start_time must be RFC3339")
		return
	}
	if query.End, err = parseTime(q.Get("end_time")); err != nil {
		respondError(w, http.StatusBadRequest, "end_time must be RFC3339")
		return
	}
	if query.Limit, err = queryInt(r, "limit", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.metrics.Query(r.Context(), query)
	if err != nil {
		respondServiceError(w, h.log, "query metrics", err)
		return
	}
	if rows == nil {
		rows = []models.Metric{}
	}

	respondJSON(w, http.StatusOK, models.MetricQueryResponse{
		Data:   rows,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
}

func (h *MetricHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rows, err := h.metrics.Latest(r.Context(), mux.Vars(r)["host_id"])
	if err != nil {
		respondServiceError(w, h.log, "get latest metrics", err)
		return
	}
	if rows == nil {
		rows = []models.Metric{}
	}

	respondJSON(w, http.StatusOK, rows)
}

func (h *MetricHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.metrics.Cleanup(r.Context(), days)
	if err != nil {
		respondServiceError(w, h.log, "clean up metrics", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
