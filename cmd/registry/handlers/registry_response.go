// Response shaping for the Terraform Registry Protocol. Everything in
// this file is pure formatting: resolved records in, fixed wire shapes
// out. Internal identifiers (locators, row ids beyond the protocol's
// composite id) never appear in responses.
package handlers

import (
	"fmt"
	"time"

	"github.com/stackforge/terraform-registry/cmd/registry/models"
)

// VersionEntry is one version inside the versions document
type VersionEntry struct {
	Version   string             `json:"version"`
	Protocols []string           `json:"protocols"`
	Platforms []models.Platform  `json:"platforms"`
}

type versionsBlock struct {
	Versions []VersionEntry `json:"versions"`
}

// VersionsDocument is the wire shape of the versions endpoint
type VersionsDocument struct {
	Modules []versionsBlock `json:"modules"`
}

// NewVersionsDocument shapes an ordered version list into the protocol
// document. Input order (descending by semver) is preserved.
func NewVersionsDocument(ordered []*models.ModuleVersion) VersionsDocument {
	entries := make([]VersionEntry, 0, len(ordered))
	for _, v := range ordered {
		entries = append(entries, VersionEntry{
			Version:   v.Version,
			Protocols: v.Protocols,
			Platforms: v.Platforms,
		})
	}

	return VersionsDocument{
		Modules: []versionsBlock{{Versions: entries}},
	}
}

// ModuleDetail is the wire shape of the module and module-version
// endpoints
type ModuleDetail struct {
	ID          string  `json:"id"`
	Owner       string  `json:"owner"`
	Namespace   string  `json:"namespace"`
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Provider    string  `json:"provider"`
	Description *string `json:"description"`
	Source      *string `json:"source"`
	PublishedAt string  `json:"published_at"`
	Downloads   int64   `json:"downloads"`
	Verified    bool    `json:"verified"`
}

// NewModuleDetail shapes a resolved module version into the protocol's
// module object
func NewModuleDetail(module *models.Module, v *models.ModuleVersion, downloads int64) ModuleDetail {
	owner := module.Namespace
	if module.Owner != nil && *module.Owner != "" {
		owner = *module.Owner
	}

	source := module.SourceURL
	if v.RepositoryURL != nil {
		source = v.RepositoryURL
	}

	return ModuleDetail{
		ID:          v.ID,
		Owner:       owner,
		Namespace:   module.Namespace,
		Name:        module.Name,
		Version:     v.Version,
		Provider:    module.Provider,
		Description: module.Description,
		Source:      source,
		PublishedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		Downloads:   downloads,
		Verified:    module.Verified,
	}
}

// NewDiscoveryDocument shapes the service discovery document
func NewDiscoveryDocument(modulesURL string) map[string]string {
	return map[string]string{
		"modules.v1": modulesURL,
	}
}

// ArchiveSourcePath is the X-Terraform-Get value for a version: the
// root-relative path Terraform fetches the archive from
func ArchiveSourcePath(namespace, name, provider, version string) string {
	return fmt.Sprintf("/v1/modules/%s/%s/%s/%s/archive", namespace, name, provider, version)
}
