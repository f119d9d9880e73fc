package handler

import (
	"net/http"
	"strconv"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

type AlertHandler struct {
	alertService service.IAlertService
	log          *logger.Logger
}

func NewAlertHandler(alertService service.IAlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		log:          log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts", h.ListAlerts).Methods("GET")
	r.HandleFunc("/alerts", h.CreateAlert).Methods("POST")
	r.HandleFunc("/alerts/stats", h.Stats).Methods("GET")
	r.HandleFunc("/alerts/test", h.SendTest).Methods("POST")
	r.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	r.HandleFunc("/alerts/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/alerts/{id}/acknowledge", h.Acknowledge).Methods("POST", "PUT")
	r.HandleFunc("/alerts/{id}/resolve", h.Resolve).Methods("POST", "PUT")
}

func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AlertFilter{
		HostID:   q.Get("host_id"),
		Severity: q.Get("severity"),
	}

	if raw := q.Get("active_only"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "active_only must be a boolean")
			return
		}
		filter.ActiveOnly = active
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.alertService.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.log, "list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	respondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	alert, err := h.alertService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.log, "create alert", err)
		return
	}

	respondJSON(w, http.StatusCreated, alert)
}

func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alertService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get alert", err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.alertService.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "get alert statistics", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// SendTest pushes a throwaway alert to live clients. Nothing is stored.
func (h *AlertHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	h.alertService.SendTestAlert(r.URL.Query().Get("host_id"))

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Test alert dispatched to connected clients",
		"type":    "TEST",
	})
}

func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	var req models.AcknowledgeAlertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	alert, err := h.alertService.Acknowledge(r.Context(), mux.Vars(r)["id"], req.AcknowledgedBy)
	if err != nil {
		respondServiceError(w, h.log, "acknowledge alert", err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alertService.Resolve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "resolve alert", err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.alertService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.log, "delete alert", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
