package handler

import (
	"context"
	"net/http"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/repository"

	"github.com/gorilla/mux"
)

type AnalyticsAPI interface {
	Series(ctx context.Context, q repository.SeriesQuery) ([]repository.TimeSeriesPoint, error)
	FleetHealth(ctx context.Context) (*repository.FleetHealth, error)
}

type AnalyticsHandler struct {
	analyticsService AnalyticsAPI
	log              *logger.Logger
}

func NewAnalyticsHandler(analyticsService AnalyticsAPI, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		log:              log,
	}
}

func (h *AnalyticsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/analytics/timeseries", h.GetTimeSeries).Methods("GET")
	r.HandleFunc("/analytics/health", h.GetFleetHealth).Methods("GET")
}

// GetTimeSeries serves ?host_id=&metric_type=cpu&field=percent&bucket=5m
// with optional RFC3339 start_time and end_time.
func (h *AnalyticsHandler) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := repository.SeriesQuery{
		HostID:     q.Get("host_id"),
		MetricType: q.Get("metric_type"),
		Field:      q.Get("field"),
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
	if raw := q.Get("bucket"); raw != "" {
		if query.Bucket, err = time.ParseDuration(raw); err != nil {
			respondError(w, http.StatusBadRequest, "bucket must be a duration such as 5m")
			return
		}
	}

	points, err := h.analyticsService.Series(r.Context(), query)
	if err != nil {
		respondServiceError(w, h.log, "get metric time series", err)
		return
	}
	if points == nil {
		points = []repository.TimeSeriesPoint{}
	}

	respondJSON(w, http.StatusOK, points)
}

func (h *AnalyticsHandler) GetFleetHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.analyticsService.FleetHealth(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "get fleet health", err)
		return
	}

	respondJSON(w, http.StatusOK, health)
}
