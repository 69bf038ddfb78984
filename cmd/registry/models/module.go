package models

import (
	"fmt"
	"time"
)

// Module identifies a logical module family. Exactly one record exists
// per distinct (namespace, name, provider) triple, created on the first
// successful upload for that triple.
// Maps to: modules table
type Module struct {
	// Composite identifier {namespace}-{name}-{provider}
	ID string `db:"id" json:"id"`

	Namespace string `db:"namespace" json:"namespace"`
	Name      string `db:"name" json:"name"`
	Provider  string `db:"provider" json:"provider"`

	Description *string `db:"description" json:"description,omitempty"`
	SourceURL   *string `db:"source_url" json:"source_url,omitempty"`
	Owner       *string `db:"owner" json:"owner,omitempty"`

	// Timestamp of the first published version
	PublishedAt time.Time `db:"published_at" json:"published_at"`

	Verified bool `db:"verified" json:"verified"`
}

// ModuleVersion is one published, immutable artifact of a Module. It
// references its owning Module by id only, never by a live pointer.
// Maps to: module_versions table, unique on (module_id, version)
type ModuleVersion struct {
	// Composite identifier {namespace}-{name}-{provider}-{version}
	ID string `db:"id" json:"id"`

	ModuleID string `db:"module_id" json:"module_id"`
	Version  string `db:"version" json:"version"`

	// Supported registry protocol versions
	Protocols []string `db:"protocols" json:"protocols"`

	Platforms []Platform `db:"platforms" json:"platforms"`

	// Opaque reference into the content store. Must resolve to a
	// retrievable blob for the lifetime of this record; the upload
	// coordinator guarantees this by storing bytes before indexing.
	ContentLocator string `db:"content_locator" json:"-"`

	Documentation map[string]interface{} `db:"documentation" json:"documentation,omitempty"`

	RepositoryURL *string `db:"repository_url" json:"repository_url,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Platform is an {os, arch} pair a version supports
type Platform struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
}

// ModuleID builds the composite module identifier for a triple
func ModuleID(namespace, name, provider string) string {
	return fmt.Sprintf("%s-%s-%s", namespace, name, provider)
}

// ModuleVersionID builds the composite identifier for a version row
func ModuleVersionID(namespace, name, provider, version string) string {
	return fmt.Sprintf("%s-%s-%s-%s", namespace, name, provider, version)
}

// DefaultProtocols returns the protocol versions a new upload supports
func DefaultProtocols() []string {
	return []string{"5.0"}
}

// DefaultPlatforms returns the platform set for a new upload
func DefaultPlatforms() []Platform {
	return []Platform{{OS: "linux", Arch: "amd64"}}
}
