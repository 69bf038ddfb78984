package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stackforge/terraform-registry/common/logger"
)

// Filesystem is a path-addressable content store rooted at a directory.
// Writes go to a temp file in the destination directory and are renamed
// into place, so concurrent puts of the same locator cannot leave a
// partially written archive visible.
type Filesystem struct {
	root string
	log  *logger.Logger
}

// NewFilesystem creates a filesystem store, creating the root directory
// if needed.
func NewFilesystem(root string, log *logger.Logger) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Filesystem{root: root, log: log}, nil
}

// Put stores archive bytes and returns the locator
func (f *Filesystem) Put(ctx context.Context, namespace, name, provider, version string, archive []byte) (string, error) {
	locator := Locator(namespace, name, provider, version)

	path, err := f.resolve(locator)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create content directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".module-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(archive); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename-into-place
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename archive into place: %w", err)
	}

	f.log.Debug("stored archive", "locator", locator, "size_bytes", len(archive))
	return locator, nil
}

// Get retrieves archive bytes by locator
func (f *Filesystem) Get(ctx context.Context, locator string) ([]byte, error) {
	path, err := f.resolve(locator)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("locator %s: %w", locator, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", locator, err)
	}

	return data, nil
}

// Delete removes stored content. Deleting an absent locator is not an
// error so compensating rollbacks are idempotent.
func (f *Filesystem) Delete(ctx context.Context, locator string) error {
	path, err := f.resolve(locator)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete archive %s: %w", locator, err)
	}

	f.log.Debug("deleted archive", "locator", locator)
	return nil
}

// Exists reports whether the locator resolves to stored content
func (f *Filesystem) Exists(ctx context.Context, locator string) (bool, error) {
	path, err := f.resolve(locator)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat archive %s: %w", locator, err)
	}
	return true, nil
}

// resolve maps a locator to an absolute path under the root, rejecting
// anything that would escape it.
func (f *Filesystem) resolve(locator string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid locator: %s", locator)
	}
	return filepath.Join(f.root, clean), nil
}
