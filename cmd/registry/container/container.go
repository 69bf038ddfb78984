package container

import (
	"fmt"

	"github.com/stackforge/terraform-registry/cmd/registry/repository"
	"github.com/stackforge/terraform-registry/cmd/registry/service"
	"github.com/stackforge/terraform-registry/common/bootstrap"
	"github.com/stackforge/terraform-registry/common/policy"
	"github.com/stackforge/terraform-registry/common/storage"
)

// Container holds all initialized services and repositories. Every
// collaborator is built exactly once here and passed in explicitly; no
// ambient lookup anywhere below.
type Container struct {
	Components *bootstrap.Components

	// Stores
	Store       storage.Store
	ModuleRepo  *repository.ModuleRepository
	VersionRepo *repository.VersionRepository

	// Services
	Policy   *policy.UploadPolicy
	Docs     *service.DocsService
	Notifier *service.Notifier
	Uploader *service.UploadCoordinator
	Resolver *service.Resolver
	Stats    *service.StatsService
	Search   *service.SearchService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	store, err := storage.NewFilesystem(components.Config.Storage.Root, components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create content store: %w", err)
	}

	uploadPolicy, err := policy.NewUploadPolicy(components.Config.Registry.UploadPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to compile upload policy: %w", err)
	}

	// Initialize repositories
	moduleRepo := repository.NewModuleRepository(components.DB)
	versionRepo := repository.NewVersionRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	docs := service.NewDocsService(components.Logger)
	notifier := service.NewNotifier(components.Queue, components.Logger)
	stats := service.NewStatsService(components.Redis, components.Logger)
	resolver := service.NewResolver(moduleRepo, versionRepo, components.Logger)
	search := service.NewSearchService(moduleRepo, components.Logger)
	uploader := service.NewUploadCoordinator(
		store,
		moduleRepo,
		versionRepo,
		uploadPolicy,
		docs,
		notifier,
		components.Cache,
		components.Config.Registry.MirrorBaseURL,
		components.Logger,
	)

	return &Container{
		Components:  components,
		Store:       store,
		ModuleRepo:  moduleRepo,
		VersionRepo: versionRepo,
		Policy:      uploadPolicy,
		Docs:        docs,
		Notifier:    notifier,
		Uploader:    uploader,
		Resolver:    resolver,
		Stats:       stats,
		Search:      search,
	}, nil
}
