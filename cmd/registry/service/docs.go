package service

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/stackforge/terraform-registry/common/logger"
)

// readmeLimit caps how much README text is inlined into documentation
const readmeLimit = 64 * 1024

// DocsService builds the documentation blob stored alongside a version:
// a file inventory plus the README text. Module sources are never
// parsed or interpreted; full documentation generation is an external
// collaborator that writes back via ApplyMergePatch.
type DocsService struct {
	log *logger.Logger
}

// NewDocsService creates a new docs service
func NewDocsService(log *logger.Logger) *DocsService {
	return &DocsService{log: log}
}

// Extract builds the initial documentation blob from an archive. The
// archive has already passed structure validation; a damaged one yields
// an empty inventory rather than an error.
func (s *DocsService) Extract(archive []byte) map[string]interface{} {
	docs := map[string]interface{}{
		"files": []string{},
	}

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		s.log.Warn("documentation extraction skipped: unreadable archive", "error", err)
		return docs
	}

	var files []string
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f.Name)

		if strings.EqualFold(baseName(f.Name), "README.md") {
			if readme := readFileCapped(f, readmeLimit); readme != "" {
				docs["readme"] = readme
			}
		}
	}

	sort.Strings(files)
	docs["files"] = files
	return docs
}

// ApplyMergePatch applies an RFC 7396 merge patch to a documentation
// blob and returns the patched blob.
func (s *DocsService) ApplyMergePatch(current map[string]interface{}, patch []byte) (map[string]interface{}, error) {
	original, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("marshal documentation: %w", err)
	}

	patched, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, fmt.Errorf("apply documentation patch: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(patched, &result); err != nil {
		return nil, fmt.Errorf("unmarshal patched documentation: %w", err)
	}

	return result, nil
}

func baseName(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func readFileCapped(f *zip.File, limit int64) string {
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return ""
	}
	return string(data)
}
