package service

import (
	"context"
	"fmt"

	"github.com/stackforge/terraform-registry/cmd/registry/models"
	"github.com/stackforge/terraform-registry/common/logger"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// SearchService answers module discovery queries
type SearchService struct {
	modules ModuleStore
	log     *logger.Logger
}

// NewSearchService creates a new search service
func NewSearchService(modules ModuleStore, log *logger.Logger) *SearchService {
	return &SearchService{
		modules: modules,
		log:     log,
	}
}

// Search lists modules matching a query and optional filters
func (s *SearchService) Search(ctx context.Context, query, namespace, provider string, limit, offset int) ([]*models.Module, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	results, err := s.modules.Search(ctx, query, namespace, provider, limit, offset)
	if err != nil {
		return nil, &MetadataError{Op: "search", Err: err}
	}

	return results, nil
}

// SearchCacheKey is the cache key for a search response
func SearchCacheKey(query, namespace, provider string, limit, offset int) string {
	return fmt.Sprintf("search:%s:%s:%s:%d:%d", query, namespace, provider, limit, offset)
}
