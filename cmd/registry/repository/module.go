package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/common/db"
)

// ModuleRepository handles database operations for module families
type ModuleRepository struct {
	db *db.DB
}

// NewModuleRepository creates a new module repository
func NewModuleRepository(db *db.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// GetByTriple retrieves the module for a (namespace, name, provider)
// triple. Returns (nil, nil) when no such module exists.
func (r *ModuleRepository) GetByTriple(ctx context.Context, namespace, name, provider string) (*models.Module, error) {
	query := `
		SELECT id, namespace, name, provider, description, source_url, owner, published_at, verified
		FROM modules
		WHERE namespace = $1 AND name = $2 AND provider = $3
	`

	module := &models.Module{}
	err := r.db.QueryRow(ctx, query, namespace, name, provider).Scan(
		&module.ID,
		&module.Namespace,
		&module.Name,
		&module.Provider,
		&module.Description,
		&module.SourceURL,
		&module.Owner,
		&module.PublishedAt,
		&module.Verified,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module: %w", err)
	}

	return module, nil
}

// Search lists modules matching a free-text query and optional
// namespace/provider filters, newest first.
func (r *ModuleRepository) Search(ctx context.Context, query, namespace, provider string, limit, offset int) ([]*models.Module, error) {
	sql := `
		SELECT id, namespace, name, provider, description, source_url, owner, published_at, verified
		FROM modules
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR namespace = $2)
		  AND ($3 = '' OR provider = $3)
		ORDER BY published_at DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := r.db.Query(ctx, sql, query, namespace, provider, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search modules: %w", err)
	}
	defer rows.Close()

	var modules []*models.Module
	for rows.Next() {
		module := &models.Module{}
		err := rows.Scan(
			&module.ID,
			&module.Namespace,
			&module.Name,
			&module.Provider,
			&module.Description,
			&module.SourceURL,
			&module.Owner,
			&module.PublishedAt,
			&module.Verified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, module)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating modules: %w", err)
	}

	return modules, nil
}
