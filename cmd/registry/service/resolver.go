package service

import (
	"context"
	"fmt"

	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/common/logger"
	"github.com/stackforge/terraform-registry/common/version"
)

// Resolver answers read requests for a module triple: the ordered
// version set, the latest version, and single-version lookups.
type Resolver struct {
	modules  ModuleStore
	versions VersionStore
	log      *logger.Logger
}

// NewResolver creates a new version resolver
func NewResolver(modules ModuleStore, versions VersionStore, log *logger.Logger) *Resolver {
	return &Resolver{
		modules:  modules,
		versions: versions,
		log:      log,
	}
}

// ListVersions returns all resolvable versions of a triple, descending
// by semver precedence. Rows with syntactically invalid version strings
// are dropped with a warning, never surfaced: they cannot be safely
// ordered. Returns ErrNotFound when the triple is unknown.
func (r *Resolver) ListVersions(ctx context.Context, namespace, name, provider string) ([]*models.ModuleVersion, error) {
	module, err := r.modules.GetByTriple(ctx, namespace, name, provider)
	if err != nil {
		return nil, &MetadataError{Op: "module lookup", Err: err}
	}
	if module == nil {
		r.log.Debug("module never existed", "namespace", namespace, "name", name, "provider", provider)
		return nil, ErrNotFound
	}

	rows, err := r.versions.ListByModule(ctx, module.ID)
	if err != nil {
		return nil, &MetadataError{Op: "version listing", Err: err}
	}

	type entry struct {
		parsed version.Version
		row    *models.ModuleVersion
	}

	entries := make([]entry, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		parsed, err := version.Parse(row.Version)
		if err != nil {
			r.log.Warn("dropping unresolvable version entry",
				"module_id", module.ID,
				"version", row.Version,
				"error", err,
			)
			continue
		}
		if seen[parsed.String()] {
			// Duplicate version strings cannot occur under the
			// uniqueness invariant; observing one means the metadata
			// store is damaged.
			return nil, &ConsistencyError{
				ModuleID: module.ID,
				Detail:   fmt.Sprintf("duplicate version rows for %q", row.Version),
			}
		}
		seen[parsed.String()] = true
		entries = append(entries, entry{parsed: parsed, row: row})
	}

	parsed := make([]version.Version, len(entries))
	byRaw := make(map[string]*models.ModuleVersion, len(entries))
	for i, e := range entries {
		parsed[i] = e.parsed
		byRaw[e.parsed.String()] = e.row
	}
	version.SortDescending(parsed)

	ordered := make([]*models.ModuleVersion, len(parsed))
	for i, p := range parsed {
		ordered[i] = byRaw[p.String()]
	}

	return ordered, nil
}

// ResolveLatest returns the highest-precedence resolvable version.
// Returns ErrNotFound both when the triple is unknown and when it has
// no resolvable versions; the distinction is logged.
func (r *Resolver) ResolveLatest(ctx context.Context, namespace, name, provider string) (*models.ModuleVersion, error) {
	ordered, err := r.ListVersions(ctx, namespace, name, provider)
	if err != nil {
		return nil, err
	}
	if len(ordered) == 0 {
		r.log.Debug("module exists but has no resolvable versions",
			"namespace", namespace, "name", name, "provider", provider)
		return nil, ErrNotFound
	}

	return ordered[0], nil
}

// ResolveVersion returns one specific version of a triple, or
// ErrNotFound if either the triple or the version is absent.
func (r *Resolver) ResolveVersion(ctx context.Context, namespace, name, provider, ver string) (*models.ModuleVersion, error) {
	module, err := r.modules.GetByTriple(ctx, namespace, name, provider)
	if err != nil {
		return nil, &MetadataError{Op: "module lookup", Err: err}
	}
	if module == nil {
		r.log.Debug("module never existed", "namespace", namespace, "name", name, "provider", provider)
		return nil, ErrNotFound
	}

	row, err := r.versions.GetByVersion(ctx, module.ID, ver)
	if err != nil {
		return nil, &MetadataError{Op: "version lookup", Err: err}
	}
	if row == nil {
		r.log.Debug("module exists, version does not",
			"module_id", module.ID, "version", ver)
		return nil, ErrNotFound
	}

	return row, nil
}

// GetModule returns the module family record for a triple, or
// ErrNotFound
func (r *Resolver) GetModule(ctx context.Context, namespace, name, provider string) (*models.Module, error) {
	module, err := r.modules.GetByTriple(ctx, namespace, name, provider)
	if err != nil {
		return nil, &MetadataError{Op: "module lookup", Err: err}
	}
	if module == nil {
		return nil, ErrNotFound
	}
	return module, nil
}
