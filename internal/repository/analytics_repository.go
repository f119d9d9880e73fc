package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Avg       float64   `json:"avg"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Samples   int       `json:"samples"`
}

// SeriesQuery selects one numeric field (dot path, e.g. load_avg.1min) of one
// metric type for one host, averaged into fixed buckets.
type SeriesQuery struct {
	HostID     string
	MetricType string
	Field      string
	Start      time.Time
	End        time.Time
	Bucket     time.Duration
}

type FleetHealth struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalHosts     int       `json:"total_hosts"`
	HealthyHosts   int       `json:"healthy_hosts"`
	UnknownHosts   int       `json:"unknown_hosts"`
	ActiveAlerts   int       `json:"active_alerts"`
	CriticalAlerts int       `json:"critical_alerts"`
	AvgCPU         float64   `json:"avg_cpu_percent"`
	AvgMemory      float64   `json:"avg_memory_percent"`
	HealthScore    float64   `json:"health_score"`
}

// numericPattern keeps the cast in MetricSeries from failing on text values.
const numericPattern = `^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`

func (r *AnalyticsRepository) MetricSeries(ctx context.Context, q SeriesQuery) ([]TimeSeriesPoint, error) {
	query := `
		SELECT
			date_bin($1::interval, s.timestamp, TIMESTAMPTZ '2000-01-01') AS bucket,
			AVG(s.v), MIN(s.v), MAX(s.v), COUNT(*)
		FROM (
			SELECT timestamp,
				CASE WHEN (data #>> $2) ~ $3 THEN (data #>> $2)::double precision END AS v
			FROM metrics
			WHERE host_id = $4
			  AND metric_type = $5
			  AND timestamp >= $6
			  AND timestamp <= $7
		) s
		WHERE s.v IS NOT NULL
		GROUP BY bucket
		ORDER BY bucket
	`

	interval := fmt.Sprintf("%d seconds", int64(q.Bucket/time.Second))
	path := pq.Array(strings.Split(q.Field, "."))

	rows, err := r.db.QueryContext(ctx, query, interval, path, numericPattern, q.HostID, q.MetricType, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric series: %w", err)
	}
	defer rows.Close()

	var points []TimeSeriesPoint
	for rows.Next() {
		var p TimeSeriesPoint
		if err := rows.Scan(&p.Timestamp, &p.Avg, &p.Min, &p.Max, &p.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// FleetHealth summarises hosts, open alerts and the latest cpu and memory
// readings of hosts seen within activeWindow.
func (r *AnalyticsRepository) FleetHealth(ctx context.Context, activeWindow time.Duration) (*FleetHealth, error) {
	query := `
		WITH host_counts AS (
			SELECT
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE status = 'healthy') AS healthy,
				COUNT(*) FILTER (WHERE status = 'unknown') AS unknown
			FROM hosts
		),
		alert_counts AS (
			SELECT
				COUNT(*) AS active,
				COUNT(*) FILTER (WHERE severity = 'CRITICAL') AS critical
			FROM alerts
			WHERE resolved_at IS NULL
		),
		latest AS (
			SELECT DISTINCT ON (host_id, metric_type) metric_type, data
			FROM metrics
			WHERE metric_type IN ('cpu', 'memory')
			  AND timestamp >= NOW() - $1::interval
			ORDER BY host_id, metric_type, timestamp DESC
		),
		usage AS (
			SELECT
				AVG((data->>'percent')::double precision) FILTER (WHERE metric_type = 'cpu') AS cpu,
				AVG((data->>'percent')::double precision) FILTER (WHERE metric_type = 'memory') AS memory
			FROM latest
		)
		SELECT h.total, h.healthy, h.unknown, a.active, a.critical, u.cpu, u.memory
		FROM host_counts h, alert_counts a, usage u
	`

	health := &FleetHealth{
		Timestamp: time.Now().UTC(),
	}

	var cpu, memory sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, fmt.Sprintf("%d seconds", int64(activeWindow/time.Second))).Scan(
		&health.TotalHosts,
		&health.HealthyHosts,
		&health.UnknownHosts,
		&health.ActiveAlerts,
		&health.CriticalAlerts,
		&cpu,
		&memory,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get fleet health: %w", err)
	}

	if cpu.Valid {
		health.AvgCPU = cpu.Float64
	}
	if memory.Valid {
		health.AvgMemory = memory.Float64
	}
	health.HealthScore = healthScore(health)

	return health, nil
}

func healthScore(h *FleetHealth) float64 {
	if h.TotalHosts == 0 {
		return 100
	}

	score := 100.0
	score -= float64(h.TotalHosts-h.HealthyHosts) / float64(h.TotalHosts) * 50
	score -= float64(h.CriticalAlerts) * 10
	score -= float64(h.ActiveAlerts-h.CriticalAlerts) * 2
	if h.AvgCPU > 80 {
		score -= (h.AvgCPU - 80) * 0.5
	}
	if h.AvgMemory > 85 {
		score -= (h.AvgMemory - 85) * 0.5
	}

	if score < 0 {
		score = 0
	}
	return score
}
