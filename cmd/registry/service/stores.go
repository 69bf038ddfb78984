package service

import (
	"context"

	"github.com/stackforge/terraform-registry/cmd/registry/models"
)

// ModuleStore is the metadata contract over module family records.
// Implemented by repository.ModuleRepository.
type ModuleStore interface {
	// GetByTriple returns (nil, nil) when the triple is unknown
	GetByTriple(ctx context.Context, namespace, name, provider string) (*models.Module, error)
	Search(ctx context.Context, query, namespace, provider string, limit, offset int) ([]*models.Module, error)
}

// VersionStore is the metadata contract over module version records.
// Implemented by repository.VersionRepository. CreateWithModule must
// reject duplicate (module, version) pairs atomically via a uniqueness
// constraint, returning repository.ErrDuplicateVersion.
type VersionStore interface {
	ListByModule(ctx context.Context, moduleID string) ([]*models.ModuleVersion, error)
	// GetByVersion returns (nil, nil) when the version is unknown
	GetByVersion(ctx context.Context, moduleID, version string) (*models.ModuleVersion, error)
	Exists(ctx context.Context, moduleID, version string) (bool, error)
	CreateWithModule(ctx context.Context, module *models.Module, v *models.ModuleVersion) error
	UpdateDocumentation(ctx context.Context, versionID string, docs map[string]interface{}) error
}
