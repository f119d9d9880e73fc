package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"HomelabMonitorAPI/internal/kube"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/websocket"

	"github.com/google/uuid"
)

type ClusterStore interface {
	List(ctx context.Context) ([]models.Cluster, error)
	ListEnabled(ctx context.Context) ([]models.Cluster, error)
	GetByID(ctx context.Context, id string) (*models.Cluster, error)
	Create(ctx context.Context, c *models.Cluster) error
	Update(ctx context.Context, id string, req *models.UpdateClusterRequest) (*models.Cluster, error)
	Delete(ctx context.Context, id string) error
}

// ClusterReader is the read API of one cluster; *kube.Client implements it.
type ClusterReader interface {
	Summarize(ctx context.Context) (*kube.Summary, error)
	Namespaces(ctx context.Context) ([]string, error)
	Nodes(ctx context.Context) ([]kube.Node, error)
	Pods(ctx context.Context, namespace string) ([]kube.Pod, error)
	Deployments(ctx context.Context, namespace string) ([]kube.Deployment, error)
	Services(ctx context.Context, namespace string) ([]kube.Service, error)
	Events(ctx context.Context, namespace string, limit int) ([]kube.Event, error)
}

type ClusterClientFactory func(c models.Cluster) (ClusterReader, error)

// KubeClientFactory connects with the cluster's kubeconfig, or in-cluster
// credentials when the path is empty.
func KubeClientFactory(c models.Cluster) (ClusterReader, error) {
	cs, err := kube.NewClientset(c.KubeconfigPath, c.Context)
	if err != nil {
		return nil, err
	}
	return kube.NewClient(c.ID, cs), nil
}

type ClusterMonitorConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type ClusterService struct {
	repo    ClusterStore
	factory ClusterClientFactory
	hub     Broadcaster
	cfg     ClusterMonitorConfig
	log     *logger.Logger

	mu        sync.RWMutex
	clients   map[string]ClusterReader
	summaries map[string]*kube.Summary

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClusterService(repo ClusterStore, factory ClusterClientFactory, hub Broadcaster, cfg ClusterMonitorConfig, log *logger.Logger) *ClusterService {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 20 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ClusterService{
		repo:      repo,
		factory:   factory,
		hub:       hub,
		cfg:       cfg,
		log:       log,
		clients:   make(map[string]ClusterReader),
		summaries: make(map[string]*kube.Summary),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *ClusterService) Create(ctx context.Context, req *models.CreateClusterRequest) (*models.Cluster, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, invalidf("name must be 1-%d characters", maxNameLength)
	}
	c := &models.Cluster{
		ID:             uuid.NewString(),
		Name:           name,
		KubeconfigPath: strings.TrimSpace(req.KubeconfigPath),
		Context:        strings.TrimSpace(req.Context),
		Enabled:        req.Enabled == nil || *req.Enabled,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("Registered cluster %s (%s)", c.Name, c.ID)
	return c, nil
}

func (s *ClusterService) Get(ctx context.Context, id string) (*models.Cluster, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ClusterService) List(ctx context.Context) ([]models.Cluster, error) {
	return s.repo.List(ctx)
}

func (s *ClusterService) Update(ctx context.Context, id string, req *models.UpdateClusterRequest) (*models.Cluster, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" || len(trimmed) > maxNameLength {
			return nil, invalidf("name must be 1-%d characters", maxNameLength)
		}
		req.Name = &trimmed
	}
	c, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.forget(id)
	return c, nil
}

func (s *ClusterService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.forget(id)
	return nil
}

func (s *ClusterService) forget(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	delete(s.summaries, id)
	s.mu.Unlock()
}

// Client returns the cached reader for a cluster, connecting on first use.
func (s *ClusterService) Client(ctx context.Context, id string) (ClusterReader, error) {
	s.mu.RLock()
	r, ok := s.clients[id]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err = s.factory(*c)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.clients[id]; ok {
		r = existing
	} else {
		s.clients[id] = r
	}
	s.mu.Unlock()
	return r, nil
}

// Sync polls one cluster now, keeps the summary and broadcasts it.
func (s *ClusterService) Sync(ctx context.Context, id string) (*kube.Summary, error) {
	r, err := s.Client(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := r.Summarize(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.summaries[id] = summary
	s.mu.Unlock()

	s.hub.BroadcastAll(websocket.ClusterStatusMessage(id, summary))
	return summary, nil
}

// LastSummary returns the most recent poll result, if any.
func (s *ClusterService) LastSummary(id string) (*kube.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[id]
	return summary, ok
}

// PollOnce syncs every enabled cluster; one cluster failing does not stop the rest.
func (s *ClusterService) PollOnce(ctx context.Context) int {
	clusters, err := s.repo.ListEnabled(ctx)
	if err != nil {
		s.log.Error("Failed to list clusters: %v", err)
		return 0
	}

	synced := 0
	for _, c := range clusters {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		_, err := s.Sync(pctx, c.ID)
		cancel()
		if err != nil {
			s.log.Warn("Cluster %s poll failed: %v", c.Name, err)
			continue
		}
		synced++
	}
	return synced
}

func (s *ClusterService) Start() {
	if s.cfg.PollInterval <= 0 {
		return
	}
	s.log.Info("Starting cluster poller every %s", s.cfg.PollInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.PollOnce(s.ctx)
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.PollOnce(s.ctx)
			}
		}
	}()
}

func (s *ClusterService) Shutdown() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("Cluster poller stopped")
}
