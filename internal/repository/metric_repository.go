package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"HomelabMonitorAPI/internal/models"
)

type MetricRepository struct {
	db *sql.DB
}

func NewMetricRepository(db *sql.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

func scanMetric(s rowScanner) (*models.Metric, error) {
	var (
		m        models.Metric
		dataJSON []byte
	)
	if err := s.Scan(&m.ID, &m.HostID, &m.Timestamp, &m.MetricType, &dataJSON); err != nil {
		return nil, err
	}
	data, err := unmarshalJSONMap(dataJSON)
	if err != nil {
		return nil, err
	}
	m.Data = data
	return &m, nil
}

// InsertBatch stores all rows in one transaction.
func (r *MetricRepository) InsertBatch(ctx context.Context, metrics []models.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metrics (host_id, timestamp, metric_type, data)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		dataJSON, err := marshalJSONMap(m.Data)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, m.HostID, m.Timestamp, m.MetricType, dataJSON); err != nil {
			return fmt.Errorf("failed to insert %s metric: %w", m.MetricType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *MetricRepository) Query(ctx context.Context, q *models.MetricQuery) ([]models.Metric, error) {
	var conditions []string
	var args []interface{}
	argCount := 1

	if q.HostID != "" {
		conditions = append(conditions, fmt.Sprintf("host_id = $%d", argCount))
		args = append(args, q.HostID)
		argCount++
	}

	if q.MetricType != "" {
		conditions = append(conditions, fmt.Sprintf("metric_type = $%d", argCount))
		args = append(args, q.MetricType)
		argCount++
	}

	if !q.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argCount))
		args = append(args, q.Start)
		argCount++
	}

	if !q.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argCount))
		args = append(args, q.End)
		argCount++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, host_id, timestamp, metric_type, data
		FROM metrics
		%s
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argCount, argCount+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	out := []models.Metric{}
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Latest returns the newest row of each metric type for a host.
func (r *MetricRepository) Latest(ctx context.Context, hostID string) ([]models.Metric, error) {
	query := `
		SELECT DISTINCT ON (metric_type) id, host_id, timestamp, metric_type, data
		FROM metrics
		WHERE host_id = $1
		ORDER BY metric_type, timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}
	defer rows.Close()

	out := []models.Metric{}
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MetricRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM metrics WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old metrics: %w", err)
	}
	return result.RowsAffected()
}
