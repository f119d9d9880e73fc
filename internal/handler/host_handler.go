package handler

import (
	"context"
	"net/http"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"

	"github.com/gorilla/mux"
)

type HostAPI interface {
	Create(ctx context.Context, req *models.CreateHostRequest) (*models.HostWithAPIKey, error)
	Get(ctx context.Context, id string) (*models.Host, error)
	List(ctx context.Context, skip, limit int) ([]models.Host, error)
	Update(ctx context.Context, id string, req *models.UpdateHostRequest) (*models.Host, error)
	Delete(ctx context.Context, id string) error
}

type HostHandler struct {
	hosts HostAPI
	log   *logger.Logger
}

func NewHostHandler(hosts HostAPI, log *logger.Logger) *HostHandler {
	return &HostHandler{hosts: hosts, log: log}
}

func (h *HostHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/hosts", h.ListHosts).Methods("GET")
	r.HandleFunc("/hosts", h.CreateHost).Methods("POST")
	r.HandleFunc("/hosts/{id}", h.GetHost).Methods("GET")
	r.HandleFunc("/hosts/{id}", h.UpdateHost).Methods("PUT", "PATCH")
	r.HandleFunc("/hosts/{id}", h.DeleteHost).Methods("DELETE")
}

func (h *HostHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hosts, err := h.hosts.List(r.Context(), skip, limit)
	if err != nil {
		respondServiceError(w, h.log, "list hosts", err)
		return
	}
	if hosts == nil {
		hosts = []models.Host{}
	}

	respondJSON(w, http.StatusOK, hosts)
}

// CreateHost returns the plaintext API key. It is not retrievable later.
func (h *HostHandler) CreateHost(w http.ResponseWriter, r *http.Request) {
	var req models.CreateHostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Invalid request body: %v", err)
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	host, err := h.hosts.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.log, "create host", err)
		return
	}

	respondJSON(w, http.StatusCreated, host)
}

func (h *HostHandler) GetHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.hosts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get host", err)
		return
	}

	respondJSON(w, http.StatusOK, host)
}

func (h *HostHandler) UpdateHost(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateHostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	host, err := h.hosts.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		respondServiceError(w, h.log, "update host", err)
		return
	}

	respondJSON(w, http.StatusOK, host)
}

func (h *HostHandler) DeleteHost(w http.ResponseWriter, r *http.Request) {
	if err := h.hosts.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.log, "delete host", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
