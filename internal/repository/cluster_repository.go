package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"HomelabMonitorAPI/internal/models"
)

type ClusterRepository struct {
	db *sql.DB
}

func NewClusterRepository(db *sql.DB) *ClusterRepository {
	return &ClusterRepository{db: db}
}

const clusterColumns = `id, name, kubeconfig_path, context, enabled, created_at, updated_at`

func scanCluster(s rowScanner) (*models.Cluster, error) {
	var c models.Cluster
	err := s.Scan(&c.ID, &c.Name, &c.KubeconfigPath, &c.Context, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClusterRepository) list(ctx context.Context, query string) ([]models.Cluster, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	clusters := []models.Cluster{}
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		clusters = append(clusters, *c)
	}
	return clusters, rows.Err()
}

func (r *ClusterRepository) List(ctx context.Context) ([]models.Cluster, error) {
	return r.list(ctx, `SELECT `+clusterColumns+` FROM clusters ORDER BY name`)
}

func (r *ClusterRepository) ListEnabled(ctx context.Context) ([]models.Cluster, error) {
	return r.list(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE enabled = TRUE ORDER BY name`)
}

func (r *ClusterRepository) GetByID(ctx context.Context, id string) (*models.Cluster, error) {
	c, err := scanCluster(r.db.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}
	return c, nil
}

func (r *ClusterRepository) Create(ctx context.Context, c *models.Cluster) error {
	query := `
		INSERT INTO clusters (id, name, kubeconfig_path, context, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.KubeconfigPath, c.Context, c.Enabled).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cluster %q: %w", c.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create cluster: %w", err)
	}
	return nil
}

func (r *ClusterRepository) Update(ctx context.Context, id string, req *models.UpdateClusterRequest) (*models.Cluster, error) {
	query := `
		UPDATE clusters
		SET name = COALESCE($2, name),
		    kubeconfig_path = COALESCE($3, kubeconfig_path),
		    context = COALESCE($4, context),
		    enabled = COALESCE($5, enabled),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + clusterColumns

	c, err := scanCluster(r.db.QueryRowContext(ctx, query, id, req.Name, req.KubeconfigPath, req.Context, req.Enabled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("cluster name: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update cluster: %w", err)
	}
	return c, nil
}

func (r *ClusterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	return nil
}
