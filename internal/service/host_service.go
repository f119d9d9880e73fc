package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/repository"
	"HomelabMonitorAPI/internal/websocket"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when an agent key matches no host.
var ErrUnauthorized = errors.New("invalid api key")

const apiKeyPrefix = "hk_"

type HostStore interface {
	Create(ctx context.Context, host *models.Host) error
	GetByID(ctx context.Context, id string) (*models.Host, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Host, error)
	List(ctx context.Context, skip, limit int) ([]models.Host, error)
	Update(ctx context.Context, id string, updates *models.UpdateHostRequest) (*models.Host, error)
	Delete(ctx context.Context, id string) error
}

type HostService struct {
	repo HostStore
	hub  Broadcaster
	log  *logger.Logger
}

func NewHostService(repo HostStore, hub Broadcaster, log *logger.Logger) *HostService {
	return &HostService{repo: repo, hub: hub, log: log}
}

// GenerateAPIKey returns a fresh agent key and the digest that is stored.
func GenerateAPIKey() (key, hash string) {
	key = apiKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	return key, HashAPIKey(key)
}

func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Create registers a host. The plaintext key is only ever in the response.
func (s *HostService) Create(ctx context.Context, req *models.CreateHostRequest) (*models.HostWithAPIKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	if len(name) > maxNameLength {
		return nil, invalidf("name must be at most %d characters", maxNameLength)
	}

	key, hash := GenerateAPIKey()
	host := &models.Host{
		ID:         uuid.NewString(),
		Name:       name,
		Hostname:   req.Hostname,
		Status:     models.HostStatusUnknown,
		Metadata:   req.Metadata,
		APIKeyHash: hash,
	}
	if host.Metadata == nil {
		host.Metadata = map[string]interface{}{}
	}

	if err := s.repo.Create(ctx, host); err != nil {
		return nil, err
	}

	s.log.Info("Registered host %s (%s)", host.Name, host.ID)
	return &models.HostWithAPIKey{Host: *host, APIKey: key}, nil
}

func (s *HostService) Get(ctx context.Context, id string) (*models.Host, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *HostService) List(ctx context.Context, skip, limit int) ([]models.Host, error) {
	if skip < 0 {
		return nil, invalidf("skip must be >= 0")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.repo.List(ctx, skip, limit)
}

// Update applies a partial update. A changed status is pushed to every
// live-update connection.
func (s *HostService) Update(ctx context.Context, id string, req *models.UpdateHostRequest) (*models.Host, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" || len(trimmed) > maxNameLength {
			return nil, invalidf("name must be 1-%d characters", maxNameLength)
		}
		req.Name = &trimmed
	}
	if req.Status != nil && !models.ValidHostStatus(*req.Status) {
		return nil, invalidf("unknown status %q", *req.Status)
	}

	var previous string
	if req.Status != nil {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		previous = current.Status
	}

	host, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && host.Status != previous {
		s.hub.BroadcastAll(websocket.HostStatusMessage(host.ID, host.Status))
	}
	return host, nil
}

func (s *HostService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("Deleted host %s", id)
	return nil
}

// Authenticate resolves an agent API key to its host.
func (s *HostService) Authenticate(ctx context.Context, apiKey string) (*models.Host, error) {
	if !strings.HasPrefix(apiKey, apiKeyPrefix) {
		return nil, ErrUnauthorized
	}
	host, err := s.repo.GetByAPIKeyHash(ctx, HashAPIKey(apiKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate host: %w", err)
	}
	return host, nil
}
