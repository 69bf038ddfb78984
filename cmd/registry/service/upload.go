package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/cmd/registry/repository"
	"github.com/stackforge/terraform-registry/common/cache"
	"github.com/stackforge/terraform-registry/common/logger"
	"github.com/stackforge/terraform-registry/common/policy"
	"github.com/stackforge/terraform-registry/common/storage"
	"github.com/stackforge/terraform-registry/common/validation"
)

// UploadRequest carries one archive publication attempt
type UploadRequest struct {
	Namespace string
	Name      string
	Provider  string
	Version   string
	Archive   []byte
}

// UploadResult is returned once a version is committed and resolvable
type UploadResult struct {
	Module  *models.Module
	Version *models.ModuleVersion
	Locator string
	// Correlation id for this upload transaction
	UploadID string
}

// UploadCoordinator runs the upload transaction: validate, store bytes,
// conflict-check, index metadata. The only observable outcomes are
// "accepted and fully resolvable" and "rejected with no trace": any
// failure after the blob write triggers a compensating blob delete.
type UploadCoordinator struct {
	store     storage.Store
	modules   ModuleStore
	versions  VersionStore
	policy    *policy.UploadPolicy
	docs      *DocsService
	notifier  *Notifier
	cache     cache.Cache
	mirrorURL string
	log       *logger.Logger
}

// NewUploadCoordinator creates a new upload coordinator. notifier and
// cache may be nil when post-commit events or response caching are
// disabled.
func NewUploadCoordinator(
	store storage.Store,
	modules ModuleStore,
	versions VersionStore,
	uploadPolicy *policy.UploadPolicy,
	docs *DocsService,
	notifier *Notifier,
	responseCache cache.Cache,
	mirrorURL string,
	log *logger.Logger,
) *UploadCoordinator {
	return &UploadCoordinator{
		store:     store,
		modules:   modules,
		versions:  versions,
		policy:    uploadPolicy,
		docs:      docs,
		notifier:  notifier,
		cache:     responseCache,
		mirrorURL: mirrorURL,
		log:       log,
	}
}

// Upload runs the full transaction for one archive
func (s *UploadCoordinator) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	uploadID := uuid.New().String()
	log := s.log.WithModule(req.Namespace, req.Name, req.Provider).WithFields(map[string]any{
		"version":   req.Version,
		"upload_id": uploadID,
	})

	// Validating: metadata and structure are checked independently and
	// all violations reported together.
	fieldErrs := validation.ValidateMetadata(req.Namespace, req.Name, req.Provider, req.Version)
	for field, msg := range validation.ValidateStructure(req.Archive) {
		fieldErrs[field] = msg
	}
	if !fieldErrs.Empty() {
		log.Info("upload rejected by validation", "violations", len(fieldErrs))
		return nil, &ValidationError{Fields: fieldErrs}
	}

	if s.policy != nil {
		allowed, err := s.policy.Allow(req.Namespace, req.Name, req.Provider, req.Version)
		if err != nil {
			return nil, fmt.Errorf("upload policy check: %w", err)
		}
		if !allowed {
			log.Info("upload rejected by policy")
			return nil, &ValidationError{Fields: validation.FieldErrors{
				"policy": "upload rejected by registry policy",
			}}
		}
	}

	// Storing: bytes go to the content store before any metadata write
	locator, err := s.store.Put(ctx, req.Namespace, req.Name, req.Provider, req.Version, req.Archive)
	if err != nil {
		log.Error("archive store failed", "error", err)
		return nil, &StorageError{Op: "put", Err: err}
	}
	log.Info("archive stored", "locator", locator, "size_bytes", len(req.Archive))

	moduleID := models.ModuleID(req.Namespace, req.Name, req.Provider)

	// Conflict-Checking: reject before committing metadata. The unique
	// constraint behind CreateWithModule closes the remaining race.
	exists, err := s.versions.Exists(ctx, moduleID, req.Version)
	if err != nil {
		s.rollbackBlob(ctx, locator, log)
		return nil, &MetadataError{Op: "conflict check", Err: err}
	}
	if exists {
		s.rollbackBlob(ctx, locator, log)
		log.Info("upload rejected: version already exists")
		return nil, &ConflictError{
			Namespace: req.Namespace,
			Name:      req.Name,
			Provider:  req.Provider,
			Version:   req.Version,
		}
	}

	module, err := s.modules.GetByTriple(ctx, req.Namespace, req.Name, req.Provider)
	if err != nil {
		s.rollbackBlob(ctx, locator, log)
		return nil, &MetadataError{Op: "module lookup", Err: err}
	}

	now := time.Now().UTC()
	if module == nil {
		module = &models.Module{
			ID:          moduleID,
			Namespace:   req.Namespace,
			Name:        req.Name,
			Provider:    req.Provider,
			PublishedAt: now,
		}
	}

	version := &models.ModuleVersion{
		ID:             models.ModuleVersionID(req.Namespace, req.Name, req.Provider, req.Version),
		ModuleID:       moduleID,
		Version:        req.Version,
		Protocols:      models.DefaultProtocols(),
		Platforms:      models.DefaultPlatforms(),
		ContentLocator: locator,
		RepositoryURL:  s.repositoryURL(moduleID),
		CreatedAt:      now,
	}
	if s.docs != nil {
		version.Documentation = s.docs.Extract(req.Archive)
	}

	// Indexing: module upsert + version insert in one metadata
	// transaction
	if err := s.versions.CreateWithModule(ctx, module, version); err != nil {
		s.rollbackBlob(ctx, locator, log)
		if errors.Is(err, repository.ErrDuplicateVersion) {
			log.Info("upload lost insert race: version already exists")
			return nil, &ConflictError{
				Namespace: req.Namespace,
				Name:      req.Name,
				Provider:  req.Provider,
				Version:   req.Version,
			}
		}
		log.Error("metadata index failed", "error", err)
		return nil, &MetadataError{Op: "index", Err: err}
	}

	log.Info("module version committed", "module_id", moduleID)

	// Committed. Everything below is strictly post-commit and
	// best-effort: the version is already valid and resolvable.
	if s.cache != nil {
		if err := s.cache.Delete(ctx, VersionsCacheKey(req.Namespace, req.Name, req.Provider)); err != nil {
			log.Warn("versions cache invalidation failed", "error", err)
		}
	}

	if s.notifier != nil {
		s.notifier.ModulePublished(ctx, PublishedEvent{
			Namespace:   req.Namespace,
			Name:        req.Name,
			Provider:    req.Provider,
			Version:     req.Version,
			Locator:     locator,
			PublishedAt: now,
		})
	}

	return &UploadResult{
		Module:   module,
		Version:  version,
		Locator:  locator,
		UploadID: uploadID,
	}, nil
}

// rollbackBlob deletes content written earlier in a failed transaction.
// Best-effort: a failed delete leaves a reclaimable orphan that no
// metadata entry points to, so it is logged, not escalated. Detached
// from the request context so a client disconnect cannot abort the
// compensation.
func (s *UploadCoordinator) rollbackBlob(ctx context.Context, locator string, log *logger.Logger) {
	if err := s.store.Delete(context.WithoutCancel(ctx), locator); err != nil {
		log.Error("compensating blob delete failed, content orphaned", "locator", locator, "error", err)
		return
	}
	log.Info("rolled back stored archive", "locator", locator)
}

// repositoryURL composes the mirror repository URL echoed on upload
func (s *UploadCoordinator) repositoryURL(moduleID string) *string {
	if s.mirrorURL == "" {
		return nil
	}
	url := fmt.Sprintf("%s/%s", s.mirrorURL, moduleID)
	return &url
}

// VersionsCacheKey is the cache key for a triple's versions document
func VersionsCacheKey(namespace, name, provider string) string {
	return fmt.Sprintf("versions:%s/%s/%s", namespace, name, provider)
}
