package handler

import (
	"context"
	"net/http"

	"HomelabMonitorAPI/internal/kube"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

type ClusterAPI interface {
	List(ctx context.Context) ([]models.Cluster, error)
	Get(ctx context.Context, id string) (*models.Cluster, error)
	Create(ctx context.Context, req *models.CreateClusterRequest) (*models.Cluster, error)
	Update(ctx context.Context, id string, req *models.UpdateClusterRequest) (*models.Cluster, error)
	Delete(ctx context.Context, id string) error
	Client(ctx context.Context, id string) (service.ClusterReader, error)
	Sync(ctx context.Context, id string) (*kube.Summary, error)
	LastSummary(id string) (*kube.Summary, bool)
}

type ClusterHandler struct {
	clusters ClusterAPI
	log      *logger.Logger
}

func NewClusterHandler(clusters ClusterAPI, log *logger.Logger) *ClusterHandler {
	return &ClusterHandler{clusters: clusters, log: log}
}

func (h *ClusterHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/clusters", h.ListClusters).Methods("GET")
	r.HandleFunc("/clusters", h.CreateCluster).Methods("POST")
	r.HandleFunc("/clusters/{id}", h.GetCluster).Methods("GET")
	r.HandleFunc("/clusters/{id}", h.UpdateCluster).Methods("PUT", "PATCH")
	r.HandleFunc("/clusters/{id}", h.DeleteCluster).Methods("DELETE")
	r.HandleFunc("/clusters/{id}/sync", h.Sync).Methods("POST")
	r.HandleFunc("/clusters/{id}/summary", h.Summary).Methods("GET")
	r.HandleFunc("/clusters/{id}/namespaces", h.Namespaces).Methods("GET")
	r.HandleFunc("/clusters/{id}/nodes", h.Nodes).Methods("GET")
	r.HandleFunc("/clusters/{id}/pods", h.Pods).Methods("GET")
	r.HandleFunc("/clusters/{id}/deployments", h.Deployments).Methods("GET")
	r.HandleFunc("/clusters/{id}/services", h.Services).Methods("GET")
	r.HandleFunc("/clusters/{id}/events", h.Events).Methods("GET")
}

func (h *ClusterHandler) ListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.clusters.List(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "list clusters", err)
		return
	}
	if clusters == nil {
		clusters = []models.Cluster{}
	}

	respondJSON(w, http.StatusOK, clusters)
}

func (h *ClusterHandler) CreateCluster(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClusterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cluster, err := h.clusters.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.log, "create cluster", err)
		return
	}

	respondJSON(w, http.StatusCreated, cluster)
}

func (h *ClusterHandler) GetCluster(w http.ResponseWriter, r *http.Request) {
	cluster, err := h.clusters.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get cluster", err)
		return
	}

	respondJSON(w, http.StatusOK, cluster)
}

func (h *ClusterHandler) UpdateCluster(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateClusterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cluster, err := h.clusters.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		respondServiceError(w, h.log, "update cluster", err)
		return
	}

	respondJSON(w, http.StatusOK, cluster)
}

func (h *ClusterHandler) DeleteCluster(w http.ResponseWriter, r *http.Request) {
	if err := h.clusters.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, h.log, "delete cluster", err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Cluster deleted"})
}

func (h *ClusterHandler) Sync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.clusters.Sync(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondClusterError(w, h.log, "sync cluster", err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *ClusterHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.clusters.LastSummary(mux.Vars(r)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "Cluster has not been polled yet")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (h *ClusterHandler) Namespaces(w http.ResponseWriter, r *http.Request) {
	h.withReader(w, r, "list namespaces", func(ctx context.Context, c service.ClusterReader) (interface{}, error) {
		return c.Namespaces(ctx)
	})
}

func (h *ClusterHandler) Nodes(w http.ResponseWriter, r *http.Request) {
	h.withReader(w, r, "list nodes", func(ctx context.Context, c service.ClusterReader) (interface{}, error) {
		return c.Nodes(ctx)
	})
}

func (h *ClusterHandler) Pods(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	h.withReader(w, r, "list pods", func(ctx context.Context, c service.ClusterReader) (interface{}, error) {
		return c.Pods(ctx, ns)
	})
}

func (h *ClusterHandler) Deployments(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	h.withReader(w, r, "list deployments", func(ctx context.Context, c service.ClusterReader) (interface{}, error) {
		return c.Deployments(ctx, ns)
	})
}

func (h *ClusterHandler) Services(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	h.withReader(w, r, "list services", func(ctx context.Context, c service.ClusterReader) (interface{}, error) {
		return c.Services(ctx, ns)
	})
}

func (h *ClusterHandler) Events(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.withReader(w, r, "list events", func(ctx context.Context, c service.ClusterReader) (interface{}, error) {
		return c.Events(ctx, ns, limit)
	})
}

func (h *ClusterHandler) withReader(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, c service.ClusterReader) (interface{}, error)) {
	reader, err := h.clusters.Client(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondClusterError(w, h.log, action, err)
		return
	}

	data, err := fn(r.Context(), reader)
	if err != nil {
		respondClusterError(w, h.log, action, err)
		return
	}

	respondJSON(w, http.StatusOK, data)
}

// respondClusterError reports an unreachable cluster as 502 rather than 500.
func respondClusterError(w http.ResponseWriter, log *logger.Logger, action string, err error) {
	if isClientError(err) {
		respondServiceError(w, log, action, err)
		return
	}
	log.Error("Failed to %s: %v", action, err)
	respondError(w, http.StatusBadGateway, "Cluster unreachable")
}
