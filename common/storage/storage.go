// Package storage provides the content store for module archives.
// Callers above this package treat locators as opaque.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a locator does not resolve to content
var ErrNotFound = errors.New("content not found")

// Store is the content store contract for module archives. Put must be
// all-or-nothing: a concurrent Get never observes a partial write.
type Store interface {
	Put(ctx context.Context, namespace, name, provider, version string, archive []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
	Exists(ctx context.Context, locator string) (bool, error)
}

// Locator derives the deterministic locator for a triple + version, so
// re-resolution never needs a side index.
func Locator(namespace, name, provider, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s/module.zip", namespace, name, provider, version)
}
