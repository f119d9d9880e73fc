package service

import (
	"context"
	"encoding/json"
	"strings"

	"HomelabMonitorAPI/internal/alerting"
	"HomelabMonitorAPI/internal/bus"
	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"

	"github.com/google/uuid"
)

const maxMetricTypeLength = 50

type RuleStore interface {
	List(ctx context.Context) ([]models.AlertRule, error)
	GetByID(ctx context.Context, id string) (*models.AlertRule, error)
	Create(ctx context.Context, rule *models.AlertRule) error
	Update(ctx context.Context, rule *models.AlertRule) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// RuleChangePublisher tells other replicas that rules changed.
type RuleChangePublisher interface {
	PublishRuleChange(ctx context.Context, ruleID, action string) error
}

type CacheInvalidator interface {
	Invalidate()
}

type RuleService struct {
	repo      RuleStore
	cache     CacheInvalidator
	publisher RuleChangePublisher
	log       *logger.Logger
}

// NewRuleService wires rule CRUD. publisher may be nil on a single replica.
func NewRuleService(repo RuleStore, cache CacheInvalidator, publisher RuleChangePublisher, log *logger.Logger) *RuleService {
	return &RuleService{repo: repo, cache: cache, publisher: publisher, log: log}
}

func (s *RuleService) List(ctx context.Context) ([]models.AlertRule, error) {
	return s.repo.List(ctx)
}

func (s *RuleService) Get(ctx context.Context, id string) (*models.AlertRule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RuleService) Create(ctx context.Context, req *models.CreateAlertRuleRequest) (*models.AlertRule, error) {
	rule := &models.AlertRule{
		ID:                   uuid.NewString(),
		Name:                 strings.TrimSpace(req.Name),
		Description:          req.Description,
		MetricType:           strings.TrimSpace(req.MetricType),
		Condition:            req.Condition,
		Severity:             req.Severity,
		Enabled:              true,
		CooldownMinutes:      req.CooldownMinutes,
		HostID:               req.HostID,
		DurationSeconds:      req.DurationSeconds,
		NotificationChannels: req.NotificationChannels,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if rule.NotificationChannels == nil {
		rule.NotificationChannels = []string{}
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info("Created alert rule %q (%s)", rule.Name, rule.ID)
	s.changed(ctx, rule.ID, bus.ActionCreated)
	return rule, nil
}

func (s *RuleService) Update(ctx context.Context, id string, req *models.UpdateAlertRuleRequest) (*models.AlertRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		rule.Description = req.Description
	}
	if req.MetricType != nil {
		rule.MetricType = strings.TrimSpace(*req.MetricType)
	}
	if len(req.Condition) > 0 {
		rule.Condition = req.Condition
	}
	if req.Severity != nil {
		rule.Severity = *req.Severity
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.CooldownMinutes != nil {
		rule.CooldownMinutes = req.CooldownMinutes
	}
	if req.HostID != nil {
		rule.HostID = req.HostID
		if *req.HostID == "" {
			rule.HostID = nil
		}
	}
	if req.DurationSeconds != nil {
		rule.DurationSeconds = *req.DurationSeconds
	}
	if req.NotificationChannels != nil {
		rule.NotificationChannels = req.NotificationChannels
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}

	s.changed(ctx, rule.ID, bus.ActionUpdated)
	return rule, nil
}

func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, id, bus.ActionDeleted)
	return nil
}

// SeedDefaults installs seeds only when no rules exist yet. It returns how
// many were created.
func (s *RuleService) SeedDefaults(ctx context.Context, seeds []alerting.SeedRule) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("Skipping rule seeding, %d rules exist", n)
		return 0, nil
	}

	created := 0
	for _, seed := range seeds {
		req, err := seed.Request()
		if err != nil {
			return created, err
		}
		rule := &models.AlertRule{
			ID:                   uuid.NewString(),
			Name:                 req.Name,
			Description:          req.Description,
			MetricType:           req.MetricType,
			Condition:            req.Condition,
			Severity:             req.Severity,
			Enabled:              req.Enabled == nil || *req.Enabled,
			CooldownMinutes:      req.CooldownMinutes,
			NotificationChannels: []string{},
		}
		if err := validateRule(rule); err != nil {
			return created, err
		}
		if err := s.repo.Create(ctx, rule); err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		s.log.Info("Seeded %d default alert rules", created)
		s.changed(ctx, "", bus.ActionSeeded)
	}
	return created, nil
}

// changed drops the local rule snapshot and tells other replicas to do the same.
func (s *RuleService) changed(ctx context.Context, ruleID, action string) {
	s.cache.Invalidate()
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRuleChange(ctx, ruleID, action); err != nil {
		s.log.Warn("Failed to publish rule change for %s: %v", ruleID, err)
	}
}

func validateRule(rule *models.AlertRule) error {
	if rule.Name == "" || len(rule.Name) > maxNameLength {
		return invalidf("name must be 1-%d characters", maxNameLength)
	}
	if rule.MetricType == "" || len(rule.MetricType) > maxMetricTypeLength {
		return invalidf("metric_type must be 1-%d characters", maxMetricTypeLength)
	}
	if !models.ValidSeverity(rule.Severity) {
		return invalidf("severity must be one of INFO, WARNING, CRITICAL")
	}
	if rule.DurationSeconds < 0 {
		return invalidf("duration_seconds must be >= 0")
	}
	if rule.CooldownMinutes != nil && *rule.CooldownMinutes < 0 {
		return invalidf("cooldown_minutes must be >= 0")
	}
	if len(rule.Condition) == 0 || !json.Valid(rule.Condition) {
		return invalidf("condition must be a JSON object")
	}

	cond, err := alerting.DecodeCondition(rule.Condition)
	if err != nil {
		return invalidf("condition: %v", err)
	}
	if !alerting.KnownOperator(cond.Operator) {
		return invalidf("unknown operator %q", cond.Operator)
	}
	return nil
}
