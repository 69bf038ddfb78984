package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/terraform-registry/common/logger"
)

func TestSearchFiltersByQueryAndProvider(t *testing.T) {
	meta := newFakeMetadata()
	meta.seedVersion("acme", "vpc-network", "aws", "1.0.0")
	meta.seedVersion("acme", "vpc-network", "google", "1.0.0")
	meta.seedVersion("acme", "k8s-cluster", "aws", "1.0.0")
	svc := NewSearchService(meta, logger.New("error", "text"))

	results, err := svc.Search(context.Background(), "vpc", "", "aws", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme-vpc-network-aws", results[0].ID)
}

func TestSearchClampsLimit(t *testing.T) {
	meta := newFakeMetadata()
	for _, name := range []string{"a", "b", "c"} {
		meta.seedVersion("acme", name, "aws", "1.0.0")
	}
	svc := NewSearchService(meta, logger.New("error", "text"))

	// Zero limit falls back to the default, which covers all three
	results, err := svc.Search(context.Background(), "", "", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = svc.Search(context.Background(), "", "", "", 2, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Negative offset is treated as zero
	results, err = svc.Search(context.Background(), "", "", "", 10, -5)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchNoMatches(t *testing.T) {
	meta := newFakeMetadata()
	meta.seedVersion("acme", "vpc", "aws", "1.0.0")
	svc := NewSearchService(meta, logger.New("error", "text"))

	results, err := svc.Search(context.Background(), "database", "", "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// A nil Redis client disables tracking instead of failing downloads
func TestStatsServiceWithoutRedis(t *testing.T) {
	svc := NewStatsService(nil, logger.New("error", "text"))
	ctx := context.Background()

	svc.TrackDownload(ctx, "acme-vpc-aws")
	assert.Equal(t, int64(0), svc.Downloads(ctx, "acme-vpc-aws"))
	assert.Equal(t, map[string]int64{"downloads": 0}, svc.ModuleStats(ctx, "acme-vpc-aws"))
}
