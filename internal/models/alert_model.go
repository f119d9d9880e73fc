package models

import (
	"encoding/json"
	"time"
)

// Alert Constants
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// ValidSeverity reports whether s is one of the three known severities.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// AlertRule is an administrator-defined threshold on one metric type.
// Condition is kept raw; the alerting package normalises it when the rule is loaded.
type AlertRule struct {
	ID                   string          `json:"id" db:"id"`
	Name                 string          `json:"name" db:"name"`
	Description          *string         `json:"description,omitempty" db:"description"`
	MetricType           string          `json:"metric_type" db:"metric_type"`
	Condition            json.RawMessage `json:"condition" db:"condition"`
	Severity             string          `json:"severity" db:"severity"`
	Enabled              bool            `json:"enabled" db:"enabled"`
	CooldownMinutes      *int            `json:"cooldown_minutes" db:"cooldown_minutes"`
	HostID               *string         `json:"host_id,omitempty" db:"host_id"`
	DurationSeconds      int             `json:"duration_seconds" db:"duration_seconds"`
	NotificationChannels []string        `json:"notification_channels" db:"notification_channels"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// Alert is the persistent record of a rule firing (or a manual report) for a host.
type Alert struct {
	ID             string                 `json:"id" db:"id"`
	HostID         string                 `json:"host_id" db:"host_id"`
	RuleID         *string                `json:"rule_id,omitempty" db:"rule_id"`
	Severity       string                 `json:"severity" db:"severity"`
	Message        string                 `json:"message" db:"message"`
	Metadata       map[string]interface{} `json:"metadata" db:"metadata"`
	TriggeredAt    time.Time              `json:"triggered_at" db:"triggered_at"`
	AcknowledgedBy *string                `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty" db:"resolved_at"`
}

func (a *Alert) IsActive() bool {
	return a.ResolvedAt == nil
}

type CreateAlertRuleRequest struct {
	Name                 string          `json:"name"`
	Description          *string         `json:"description"`
	MetricType           string          `json:"metric_type"`
	Condition            json.RawMessage `json:"condition"`
	Severity             string          `json:"severity"`
	Enabled              *bool           `json:"enabled"`
	CooldownMinutes      *int            `json:"cooldown_minutes"`
	HostID               *string         `json:"host_id"`
	DurationSeconds      int             `json:"duration_seconds"`
	NotificationChannels []string        `json:"notification_channels"`
}

type UpdateAlertRuleRequest struct {
	Name                 *string         `json:"name"`
	Description          *string         `json:"description"`
	MetricType           *string         `json:"metric_type"`
	Condition            json.RawMessage `json:"condition"`
	Severity             *string         `json:"severity"`
	Enabled              *bool           `json:"enabled"`
	CooldownMinutes      *int            `json:"cooldown_minutes"`
	HostID               *string         `json:"host_id"`
	DurationSeconds      *int            `json:"duration_seconds"`
	NotificationChannels []string        `json:"notification_channels"`
}

type CreateAlertRequest struct {
	HostID   string                 `json:"host_id"`
	RuleID   *string                `json:"rule_id"`
	Severity string                 `json:"severity"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata"`
}

type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

type AlertFilter struct {
	HostID     string
	Severity   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type AlertStats struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	Acknowledged int            `json:"acknowledged"`
	Resolved     int            `json:"resolved"`
	BySeverity   map[string]int `json:"by_severity"`
}
