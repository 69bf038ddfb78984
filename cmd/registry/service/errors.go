package service

import (
	"errors"
	"fmt"

	"github.com/stackforge/terraform-registry/common/validation"
)

// ErrNotFound signals that a module triple or version is absent.
// "module never existed" and "module exists, version does not" both map
// here; the distinction is logged, never surfaced (both are 404 on the
// wire).
var ErrNotFound = errors.New("not found")

// ValidationError carries the complete set of metadata and structure
// violations for an upload. Client-caused, returned with full detail,
// never retried, never persists side effects.
type ValidationError struct {
	Fields validation.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) invalid", len(e.Fields))
}

// ConflictError signals that the exact triple + version is already
// published. Reported distinctly from validation errors so clients can
// pick a new version number.
type ConflictError struct {
	Namespace string
	Name      string
	Provider  string
	Version   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version %s of %s/%s/%s already exists", e.Version, e.Namespace, e.Name, e.Provider)
}

// StorageError wraps a content store failure. No metadata write is
// attempted after one; surfaced as a server error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MetadataError wraps a metadata store failure. When it happens after
// the blob write, the coordinator runs a compensating blob delete
// before surfacing it.
type MetadataError struct {
	Op  string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata failure during %s: %v", e.Op, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ConsistencyError signals observed data-integrity damage: duplicate
// version rows for one triple, or a version whose locator does not
// resolve. Logged loudly; the damaged record is excluded rather than
// failing the whole request where possible.
type ConsistencyError struct {
	ModuleID string
	Detail   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error on module %s: %s", e.ModuleID, e.Detail)
}
