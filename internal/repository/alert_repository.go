package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/models"
)

// IAlertRepository defines the operations for managing host alerts.
type IAlertRepository interface {
	PersistAlerts(ctx context.Context, alerts []*models.Alert) error
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, by string) (*models.Alert, error)
	Resolve(ctx context.Context, id string) (*models.Alert, error)
	Delete(ctx context.Context, id string) error
	GetStatistics(ctx context.Context) (*models.AlertStats, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, host_id, rule_id, severity, message, metadata, triggered_at,
	acknowledged_by, acknowledged_at, resolved_at`

const insertAlert = `
	INSERT INTO alerts (id, host_id, rule_id, severity, message, metadata, triggered_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func scanAlert(s rowScanner) (*models.Alert, error) {
	var (
		a              models.Alert
		ruleID         sql.NullString
		metadataJSON   []byte
		acknowledgedBy sql.NullString
		acknowledgedAt sql.NullTime
		resolvedAt     sql.NullTime
	)

	err := s.Scan(
		&a.ID,
		&a.HostID,
		&ruleID,
		&a.Severity,
		&a.Message,
		&metadataJSON,
		&a.TriggeredAt,
		&acknowledgedBy,
		&acknowledgedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if ruleID.Valid {
		a.RuleID = &ruleID.String
	}
	if acknowledgedBy.Valid {
		a.AcknowledgedBy = &acknowledgedBy.String
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		a.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if a.Metadata, err = unmarshalJSONMap(metadataJSON); err != nil {
		return nil, err
	}
	return &a, nil
}

// PersistAlerts inserts all alerts in a single transaction; either every row
// lands or none does.
func (r *AlertRepository) PersistAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertAlert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range alerts {
		metadataJSON, err := marshalJSONMap(a.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.HostID, a.RuleID, a.Severity, a.Message, metadataJSON, a.TriggeredAt); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Create inserts a single alert record.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	metadataJSON, err := marshalJSONMap(alert.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, insertAlert,
		alert.ID, alert.HostID, alert.RuleID, alert.Severity, alert.Message, metadataJSON, alert.TriggeredAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID retrieves a single alert by its primary key.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}
	return alert, nil
}

// List returns alerts newest first, narrowed by the filter.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	var conditions []string
	var args []interface{}
	argCount := 1

	if filter.HostID != "" {
		conditions = append(conditions, fmt.Sprintf("host_id = $%d", argCount))
		args = append(args, filter.HostID)
		argCount++
	}
	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argCount))
		args = append(args, filter.Severity)
		argCount++
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "resolved_at IS NULL")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, alertColumns, whereClause, argCount, argCount+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// Acknowledge records who acknowledged the alert.
func (r *AlertRepository) Acknowledge(ctx context.Context, id, by string) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1
		RETURNING ` + alertColumns

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id, by, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return alert, nil
}

// Resolve marks an alert as resolved. Resolving twice keeps the first time.
func (r *AlertRepository) Resolve(ctx context.Context, id string) (*models.Alert, error) {
	query := `
		UPDATE alerts
		SET resolved_at = COALESCE(resolved_at, $2)
		WHERE id = $1
		RETURNING ` + alertColumns

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}
	return alert, nil
}

// Delete removes an alert record from the database.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetStatistics counts alerts by lifecycle state and by severity.
func (r *AlertRepository) GetStatistics(ctx context.Context) (*models.AlertStats, error) {
	query := `
		SELECT severity,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE resolved_at IS NULL),
		       COUNT(*) FILTER (WHERE resolved_at IS NULL AND acknowledged_at IS NOT NULL),
		       COUNT(*) FILTER (WHERE resolved_at IS NOT NULL)
		FROM alerts
		GROUP BY severity
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert statistics: %w", err)
	}
	defer rows.Close()

	stats := &models.AlertStats{BySeverity: make(map[string]int)}
	for rows.Next() {
		var sev string
		var total, active, acked, resolved int
		if err := rows.Scan(&sev, &total, &active, &acked, &resolved); err != nil {
			return nil, err
		}
		stats.Total += total
		stats.Active += active
		stats.Acknowledged += acked
		stats.Resolved += resolved
		stats.BySeverity[sev] = active
	}
	return stats, rows.Err()
}
