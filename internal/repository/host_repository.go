package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"HomelabMonitorAPI/internal/models"
)

type HostRepository struct {
	db *sql.DB
}

func NewHostRepository(db *sql.DB) *HostRepository {
	return &HostRepository{db: db}
}

const hostColumns = `id, name, hostname, status, last_seen, metadata, api_key_hash, created_at, updated_at`

func scanHost(s rowScanner) (*models.Host, error) {
	var (
		host         models.Host
		hostname     sql.NullString
		lastSeen     sql.NullTime
		metadataJSON []byte
	)

	err := s.Scan(
		&host.ID,
		&host.Name,
		&hostname,
		&host.Status,
		&lastSeen,
		&metadataJSON,
		&host.APIKeyHash,
		&host.CreatedAt,
		&host.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hostname.Valid {
		host.Hostname = &hostname.String
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		host.LastSeen = &t
	}
	if host.Metadata, err = unmarshalJSONMap(metadataJSON); err != nil {
		return nil, err
	}
	return &host, nil
}

func (r *HostRepository) Create(ctx context.Context, host *models.Host) error {
	query := `
		INSERT INTO hosts (id, name, hostname, status, metadata, api_key_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	metadataJSON, err := marshalJSONMap(host.Metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(
		ctx, query,
		host.ID,
		host.Name,
		host.Hostname,
		host.Status,
		metadataJSON,
		host.APIKeyHash,
	).Scan(&host.CreatedAt, &host.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("host %q: %w", host.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create host: %w", err)
	}

	return nil
}

func (r *HostRepository) GetByID(ctx context.Context, id string) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id = $1`

	host, err := scanHost(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("host %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return host, nil
}

// GetByAPIKeyHash resolves an agent's key digest to its host.
func (r *HostRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE api_key_hash = $1`

	host, err := scanHost(r.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host by api key: %w", err)
	}
	return host, nil
}

func (r *HostRepository) List(ctx context.Context, skip, limit int) ([]models.Host, error) {
	query := `
		SELECT ` + hostColumns + `
		FROM hosts
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	hosts := []models.Host{}
	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, *host)
	}
	return hosts, rows.Err()
}

func (r *HostRepository) Update(ctx context.Context, id string, updates *models.UpdateHostRequest) (*models.Host, error) {
	query := `
		UPDATE hosts
		SET name = COALESCE($2, name),
		    hostname = COALESCE($3, hostname),
		    status = COALESCE($4, status),
		    metadata = COALESCE($5, metadata),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + hostColumns

	var metadataArg interface{}
	if updates.Metadata != nil {
		metadataJSON, err := marshalJSONMap(updates.Metadata)
		if err != nil {
			return nil, err
		}
		metadataArg = metadataJSON
	}

	host, err := scanHost(r.db.QueryRowContext(
		ctx, query,
		id,
		updates.Name,
		updates.Hostname,
		updates.Status,
		metadataArg,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("host %s: %w", id, ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("host name: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update host: %w", err)
	}
	return host, nil
}

func (r *HostRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM hosts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete host: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("host %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateLastSeen stamps the host and sets its status, returning the status it
// had before.
func (r *HostRepository) UpdateLastSeen(ctx context.Context, id string, ts time.Time, status string) (string, error) {
	query := `
		WITH prev AS (
			SELECT id, status FROM hosts WHERE id = $1 FOR UPDATE
		)
		UPDATE hosts h
		SET last_seen = $2, status = $3, updated_at = NOW()
		FROM prev
		WHERE h.id = prev.id
		RETURNING prev.status
	`

	var previous string
	err := r.db.QueryRowContext(ctx, query, id, ts, status).Scan(&previous)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("host %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to update last_seen: %w", err)
	}
	return previous, nil
}

// MarkStale sets every host not seen since cutoff to unknown and returns the
// ids that changed.
func (r *HostRepository) MarkStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE hosts
		SET status = $2, updated_at = NOW()
		WHERE last_seen < $1 AND status <> $2
		RETURNING id
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff, models.HostStatusUnknown)
	if err != nil {
		return nil, fmt.Errorf("failed to mark stale hosts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *HostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hosts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count hosts: %w", err)
	}
	return n, nil
}
