package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/alerting"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
	"HomelabMonitorAPI/internal/repository"

	"github.com/google/uuid"
)

// IAlertService defines the business logic for handling alerts.
type IAlertService interface {
	Create(ctx context.Context, req *models.CreateAlertRequest) (*models.Alert, error)
	Get(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, by string) (*models.Alert, error)
	Resolve(ctx context.Context, id string) (*models.Alert, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.AlertStats, error)
	SendTestAlert(hostID string)
}

type AlertService struct {
	repo     repository.IAlertRepository
	notifier alerting.AlertNotifier
	now      func() time.Time
	log      *logger.Logger
}

func NewAlertService(repo repository.IAlertRepository, notifier alerting.AlertNotifier, log *logger.Logger) *AlertService {
	return &AlertService{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
		log:      log,
	}
}

// Create records a manually reported alert and pushes it like an engine alert.
func (s *AlertService) Create(ctx context.Context, req *models.CreateAlertRequest) (*models.Alert, error) {
	if strings.TrimSpace(req.HostID) == "" {
		return nil, invalidf("host_id is required")
	}
	if !models.ValidSeverity(req.Severity) {
		return nil, invalidf("severity must be one of INFO, WARNING, CRITICAL")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, invalidf("message is required")
	}

	alert := &models.Alert{
		ID:          uuid.NewString(),
		HostID:      req.HostID,
		RuleID:      req.RuleID,
		Severity:    req.Severity,
		Message:     req.Message,
		Metadata:    req.Metadata,
		TriggeredAt: s.now().UTC(),
	}
	if alert.Metadata == nil {
		alert.Metadata = map[string]interface{}{}
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to persist alert: %w", err)
	}
	s.notifier.NotifyAlert(alert)

	if alert.Severity == models.SeverityCritical {
		s.log.Warn("[CRITICAL ALERT] host=%s: %s", alert.HostID, alert.Message)
	}
	return alert, nil
}

func (s *AlertService) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AlertService) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	if filter.Severity != "" && !models.ValidSeverity(filter.Severity) {
		return nil, invalidf("unknown severity %q", filter.Severity)
	}
	if filter.Offset < 0 {
		return nil, invalidf("offset must be >= 0")
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Acknowledge marks an alert as seen by someone.
func (s *AlertService) Acknowledge(ctx context.Context, id, by string) (*models.Alert, error) {
	by = strings.TrimSpace(by)
	if by == "" || len(by) > maxNameLength {
		return nil, invalidf("acknowledged_by must be 1-%d characters", maxNameLength)
	}
	alert, err := s.repo.Acknowledge(ctx, id, by)
	if err != nil {
		return nil, err
	}
	s.log.Info("Alert %s acknowledged by %s", id, by)
	return alert, nil
}

// Resolve marks the underlying issue as fixed.
func (s *AlertService) Resolve(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.repo.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("Alert %s resolved", id)
	return alert, nil
}

func (s *AlertService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *AlertService) Stats(ctx context.Context) (*models.AlertStats, error) {
	return s.repo.GetStatistics(ctx)
}

// SendTestAlert pushes an ephemeral INFO alert to live clients without storing it.
func (s *AlertService) SendTestAlert(hostID string) {
	if hostID == "" {
		hostID = "test-host"
	}
	s.notifier.NotifyAlert(&models.Alert{
		ID:          uuid.NewString(),
		HostID:      hostID,
		Severity:    models.SeverityInfo,
		Message:     "Test alert: live notifications are working",
		Metadata:    map[string]interface{}{"test": true},
		TriggeredAt: s.now().UTC(),
	})
	s.log.Info("Ephemeral test alert broadcast for host %s", hostID)
}
