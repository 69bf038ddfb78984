package validation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/stackforge/terraform-registry/common/version"
)

// identifierPattern matches valid namespace/name/provider identifiers:
// lowercase alphanumeric, hyphens and underscores allowed inside.
var identifierPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9\-_]*[a-z0-9])?$`)

// requiredFiles are the root module files an archive must contain
var requiredFiles = []string{"main.tf", "variables.tf", "outputs.tf"}

// FieldErrors maps a field or file name to a human-readable message.
// All violations are collected; validation never stops at the first
// failure so callers can report the complete set.
type FieldErrors map[string]string

// Empty reports whether no violations were recorded
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// ValidateMetadata checks the identifying triple and version string.
// Each field is validated independently.
func ValidateMetadata(namespace, name, provider, ver string) FieldErrors {
	errs := make(FieldErrors)

	for field, value := range map[string]string{
		"namespace": namespace,
		"name":      name,
		"provider":  provider,
	} {
		if !identifierPattern.MatchString(value) {
			errs[field] = fmt.Sprintf("%s must be lowercase alphanumeric and may contain hyphens or underscores", field)
		}
	}

	if !version.IsValid(ver) {
		errs["version"] = "version must follow semantic versioning (e.g. 1.0.0)"
	}

	return errs
}

// ValidateStructure checks that the archive is a well-formed zip and
// contains the required root module files. Required files may sit at
// the archive root or inside a single top-level directory.
func ValidateStructure(archive []byte) FieldErrors {
	errs := make(FieldErrors)

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		errs["archive"] = "file is not a valid zip archive"
		return errs
	}

	present := make(map[string]bool, len(requiredFiles))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(f.Name, "./")
		parts := strings.Split(name, "/")
		if len(parts) > 2 {
			continue
		}
		present[parts[len(parts)-1]] = true
	}

	for _, required := range requiredFiles {
		if !present[required] {
			errs[required] = fmt.Sprintf("required file %s is missing", required)
		}
	}

	return errs
}
