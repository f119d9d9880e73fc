package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"HomelabMonitorAPI/internal/models"

	"github.com/lib/pq"
)

type AlertRuleRepository struct {
	db *sql.DB
}

func NewAlertRuleRepository(db *sql.DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

const ruleColumns = `id, name, description, metric_type, condition, severity, enabled,
	cooldown_minutes, host_id, duration_seconds, notification_channels, created_at, updated_at`

func scanRule(s rowScanner) (*models.AlertRule, error) {
	var (
		rule        models.AlertRule
		description sql.NullString
		condition   []byte
		cooldown    sql.NullInt64
		hostID      sql.NullString
		channels    pq.StringArray
	)

	err := s.Scan(
		&rule.ID,
		&rule.Name,
		&description,
		&rule.MetricType,
		&condition,
		&rule.Severity,
		&rule.Enabled,
		&cooldown,
		&hostID,
		&rule.DurationSeconds,
		&channels,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		rule.Description = &description.String
	}
	if cooldown.Valid {
		c := int(cooldown.Int64)
		rule.CooldownMinutes = &c
	}
	if hostID.Valid {
		rule.HostID = &hostID.String
	}
	rule.Condition = json.RawMessage(condition)
	rule.NotificationChannels = []string(channels)
	if rule.NotificationChannels == nil {
		rule.NotificationChannels = []string{}
	}
	return &rule, nil
}

func (r *AlertRuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]models.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	rules := []models.AlertRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// FetchEnabledRules returns enabled rules oldest first, the order the engine
// evaluates them in.
func (r *AlertRuleRepository) FetchEnabledRules(ctx context.Context) ([]models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE enabled = TRUE ORDER BY created_at, id`
	return r.queryRules(ctx, query)
}

func (r *AlertRuleRepository) List(ctx context.Context) ([]models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules ORDER BY created_at, id`
	return r.queryRules(ctx, query)
}

func (r *AlertRuleRepository) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM alert_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}
	return rule, nil
}

func (r *AlertRuleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	query := `
		INSERT INTO alert_rules (
			id, name, description, metric_type, condition, severity, enabled,
			cooldown_minutes, host_id, duration_seconds, notification_channels
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.MetricType,
		[]byte(rule.Condition),
		rule.Severity,
		rule.Enabled,
		rule.CooldownMinutes,
		rule.HostID,
		rule.DurationSeconds,
		pq.Array(rule.NotificationChannels),
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}
	return nil
}

// Update overwrites every mutable column with the values in rule.
func (r *AlertRuleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	query := `
		UPDATE alert_rules
		SET name = $2, description = $3, metric_type = $4, condition = $5,
		    severity = $6, enabled = $7, cooldown_minutes = $8, host_id = $9,
		    duration_seconds = $10, notification_channels = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.MetricType,
		[]byte(rule.Condition),
		rule.Severity,
		rule.Enabled,
		rule.CooldownMinutes,
		rule.HostID,
		rule.DurationSeconds,
		pq.Array(rule.NotificationChannels),
	).Scan(&rule.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("alert rule %s: %w", rule.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	return nil
}

func (r *AlertRuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *AlertRuleRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alert rules: %w", err)
	}
	return n, nil
}
