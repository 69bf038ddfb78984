package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/common/db"
)

// ErrDuplicateVersion is returned when an insert hits the unique
// constraint on (module_id, version). The coordinator treats it exactly
// like a conflict detected at check-time.
var ErrDuplicateVersion = errors.New("module version already exists")

// uniqueViolation is the Postgres error code for unique constraint hits
const uniqueViolation = "23505"

// VersionRepository handles database operations for module versions
type VersionRepository struct {
	db *db.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *db.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// ListByModule retrieves all version rows for a module, insertion order
func (r *VersionRepository) ListByModule(ctx context.Context, moduleID string) ([]*models.ModuleVersion, error) {
	query := `
		SELECT id, module_id, version, protocols, platforms, content_locator,
			documentation, repository_url, created_at
		FROM module_versions
		WHERE module_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list module versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ModuleVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating module versions: %w", err)
	}

	return versions, nil
}

// GetByVersion retrieves one version row. Returns (nil, nil) when the
// version does not exist.
func (r *VersionRepository) GetByVersion(ctx context.Context, moduleID, version string) (*models.ModuleVersion, error) {
	query := `
		SELECT id, module_id, version, protocols, platforms, content_locator,
			documentation, repository_url, created_at
		FROM module_versions
		WHERE module_id = $1 AND version = $2
	`

	v, err := scanVersion(r.db.QueryRow(ctx, query, moduleID, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Exists checks whether a version row exists for (module, version)
func (r *VersionRepository) Exists(ctx context.Context, moduleID, version string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM module_versions WHERE module_id = $1 AND version = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, moduleID, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check version existence: %w", err)
	}

	return exists, nil
}

// CreateWithModule inserts the version row, creating the owning module
// record first if the triple is new, in a single transaction. Returns
// ErrDuplicateVersion if a concurrent upload won the race on the
// (module_id, version) unique constraint.
func (r *VersionRepository) CreateWithModule(ctx context.Context, module *models.Module, v *models.ModuleVersion) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	moduleQuery := `
		INSERT INTO modules (id, namespace, name, provider, description, source_url, owner, published_at, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, moduleQuery,
		module.ID,
		module.Namespace,
		module.Name,
		module.Provider,
		module.Description,
		module.SourceURL,
		module.Owner,
		module.PublishedAt,
		module.Verified,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert module: %w", err)
	}

	protocols, err := json.Marshal(v.Protocols)
	if err != nil {
		return fmt.Errorf("failed to marshal protocols: %w", err)
	}
	platforms, err := json.Marshal(v.Platforms)
	if err != nil {
		return fmt.Errorf("failed to marshal platforms: %w", err)
	}
	var documentation []byte
	if v.Documentation != nil {
		if documentation, err = json.Marshal(v.Documentation); err != nil {
			return fmt.Errorf("failed to marshal documentation: %w", err)
		}
	}

	versionQuery := `
		INSERT INTO module_versions (id, module_id, version, protocols, platforms,
			content_locator, documentation, repository_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, versionQuery,
		v.ID,
		v.ModuleID,
		v.Version,
		protocols,
		platforms,
		v.ContentLocator,
		documentation,
		v.RepositoryURL,
		v.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("version %s of module %s: %w", v.Version, v.ModuleID, ErrDuplicateVersion)
		}
		return fmt.Errorf("failed to insert module version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit module version: %w", err)
	}

	return nil
}

// UpdateDocumentation replaces the documentation blob of a version row
func (r *VersionRepository) UpdateDocumentation(ctx context.Context, versionID string, docs map[string]interface{}) error {
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to marshal documentation: %w", err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE module_versions SET documentation = $2 WHERE id = $1`, versionID, payload)
	if err != nil {
		return fmt.Errorf("failed to update documentation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*models.ModuleVersion, error) {
	v := &models.ModuleVersion{}
	var protocols, platforms, documentation []byte

	err := row.Scan(
		&v.ID,
		&v.ModuleID,
		&v.Version,
		&protocols,
		&platforms,
		&v.ContentLocator,
		&documentation,
		&v.RepositoryURL,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan module version: %w", err)
	}

	if err := json.Unmarshal(protocols, &v.Protocols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protocols: %w", err)
	}
	if err := json.Unmarshal(platforms, &v.Platforms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platforms: %w", err)
	}
	if len(documentation) > 0 {
		if err := json.Unmarshal(documentation, &v.Documentation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal documentation: %w", err)
		}
	}

	return v, nil
}
