package handler

import (
	"context"
	"net/http"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"

	"github.com/gorilla/mux"
)

type RuleAPI interface {
	List(ctx context.Context) ([]models.AlertRule, error)
	Get(ctx context.Context, id string) (*models.AlertRule, error)
	Create(ctx context.Context, req *models.CreateAlertRuleRequest) (*models.AlertRule, error)
	Update(ctx context.Context, id string, req *models.UpdateAlertRuleRequest) (*models.AlertRule, error)
	Delete(ctx context.Context, id string) error
}

type AlertRuleHandler struct {
	rules RuleAPI
	log   *logger.Logger
}

func NewAlertRuleHandler(rules RuleAPI, log *logger.Logger) *AlertRuleHandler {
	return &AlertRuleHandler{rules: rules, log: log}
}

func (h *AlertRuleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alert-rules", h.ListRules).Methods("GET")
	r.HandleFunc("/alert-rules", h.CreateRule).Methods("POST")
	r.HandleFunc("/alert-rules/{id}", h.GetRule).Methods("GET")
	r.HandleFunc("/alert-rules/{id}", h.UpdateRule).Methods("PUT", "PATCH")
	r.HandleFunc("/alert-rules/{id}", h.DeleteRule).Methods("DELETE")
}

func (h *AlertRuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "list alert rules", err)
		return
	}
	if rules == nil {
		rules = []models.AlertRule{}
	}

	respondJSON(w, http.StatusOK, rules)
}

func (h *AlertRuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAlertRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Invalid alert rule body: %v", err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.rules.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.log, "create alert rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

func (h *AlertRuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get alert rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (h *AlertRuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAlertRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.rules.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		respondServiceError(w, h.log, "update alert rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

func (h *AlertRuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.log, "delete alert rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
