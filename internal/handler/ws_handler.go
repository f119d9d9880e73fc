package handler

import (
	"net/http"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/websocket"

	"github.com/gorilla/mux"
)

type WSHandler struct {
	hub *websocket.Hub
	cfg websocket.Config
	log *logger.Logger
}

func NewWSHandler(hub *websocket.Hub, cfg websocket.Config, log *logger.Logger) *WSHandler {
	return &WSHandler{hub: hub, cfg: cfg, log: log}
}

func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/metrics", h.Serve).Methods("GET")
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.cfg, w, r, h.log)
}
