package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/cmd/registry/repository"
	"github.com/stackforge/terraform-registry/common/storage"
)

// fakeMetadata is an in-memory stand-in for the module and version
// repositories, with injectable failures.
type fakeMetadata struct {
	mu       sync.Mutex
	modules  map[string]*models.Module
	versions map[string][]*models.ModuleVersion

	getModuleErr error
	listErr      error
	existsErr    error
	createErr    error
	updateErr    error
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		modules:  make(map[string]*models.Module),
		versions: make(map[string][]*models.ModuleVersion),
	}
}

func (f *fakeMetadata) GetByTriple(ctx context.Context, namespace, name, provider string) (*models.Module, error) {
	if f.getModuleErr != nil {
		return nil, f.getModuleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modules[models.ModuleID(namespace, name, provider)], nil
}

func (f *fakeMetadata) Search(ctx context.Context, query, namespace, provider string, limit, offset int) ([]*models.Module, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Module
	for _, m := range f.modules {
		if query != "" && !strings.Contains(m.Name, query) {
			continue
		}
		if namespace != "" && m.Namespace != namespace {
			continue
		}
		if provider != "" && m.Provider != provider {
			continue
		}
		out = append(out, m)
	}
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMetadata) ListByModule(ctx context.Context, moduleID string) ([]*models.ModuleVersion, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.ModuleVersion(nil), f.versions[moduleID]...), nil
}

func (f *fakeMetadata) GetByVersion(ctx context.Context, moduleID, version string) (*models.ModuleVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[moduleID] {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, nil
}

func (f *fakeMetadata) Exists(ctx context.Context, moduleID, version string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[moduleID] {
		if v.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMetadata) CreateWithModule(ctx context.Context, module *models.Module, v *models.ModuleVersion) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.modules[module.ID]; !ok {
		f.modules[module.ID] = module
	}
	for _, existing := range f.versions[module.ID] {
		if existing.Version == v.Version {
			return repository.ErrDuplicateVersion
		}
	}
	f.versions[module.ID] = append(f.versions[module.ID], v)
	return nil
}

func (f *fakeMetadata) UpdateDocumentation(ctx context.Context, versionID string, docs map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vs := range f.versions {
		for _, v := range vs {
			if v.ID == versionID {
				v.Documentation = docs
				return nil
			}
		}
	}
	return nil
}

// seedVersion plants a module and version row directly, bypassing the
// upload path.
func (f *fakeMetadata) seedVersion(namespace, name, provider, version string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	moduleID := models.ModuleID(namespace, name, provider)
	if _, ok := f.modules[moduleID]; !ok {
		f.modules[moduleID] = &models.Module{
			ID:          moduleID,
			Namespace:   namespace,
			Name:        name,
			Provider:    provider,
			PublishedAt: time.Now().UTC(),
		}
	}
	f.versions[moduleID] = append(f.versions[moduleID], &models.ModuleVersion{
		ID:             models.ModuleVersionID(namespace, name, provider, version),
		ModuleID:       moduleID,
		Version:        version,
		Protocols:      models.DefaultProtocols(),
		Platforms:      models.DefaultPlatforms(),
		ContentLocator: storage.Locator(namespace, name, provider, version),
		CreatedAt:      time.Now().UTC(),
	})
}

// fakeBlobStore is an in-memory content store recording deletes
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string

	putErr    error
	deleteErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, namespace, name, provider, version string, archive []byte) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	locator := storage.Locator(namespace, name, provider, version)
	f.objects[locator] = append([]byte(nil), archive...)
	return locator, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, locator string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[locator]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, locator string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, locator)
	f.deletes = append(f.deletes, locator)
	return nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, locator string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[locator]
	return ok, nil
}

// fakeCache records invalidations
type fakeCache struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeCache) Close() error { return nil }
