package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stackforge/terraform-registry/common/logger"
	rediscommon "github.com/stackforge/terraform-registry/common/redis"
)

// StatsService tracks download counts per module in Redis. Counting is
// auxiliary to the registry contract: failures are logged and swallowed
// so a degraded Redis never blocks a download.
type StatsService struct {
	redis *rediscommon.Client
	log   *logger.Logger
}

// NewStatsService creates a new stats service. redis may be nil, which
// disables tracking.
func NewStatsService(redis *rediscommon.Client, log *logger.Logger) *StatsService {
	return &StatsService{
		redis: redis,
		log:   log,
	}
}

// TrackDownload increments the download counter for a module
func (s *StatsService) TrackDownload(ctx context.Context, moduleID string) {
	if s.redis == nil {
		return
	}

	if _, err := s.redis.IncrementHash(ctx, statsKey(moduleID), "downloads", 1); err != nil {
		s.log.Warn("download tracking failed", "module_id", moduleID, "error", err)
	}
}

// Downloads returns the download count for a module, 0 when unknown
func (s *StatsService) Downloads(ctx context.Context, moduleID string) int64 {
	if s.redis == nil {
		return 0
	}

	val, err := s.redis.GetHash(ctx, statsKey(moduleID), "downloads")
	if err != nil {
		return 0
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.log.Warn("malformed download counter", "module_id", moduleID, "value", val)
		return 0
	}

	return count
}

// ModuleStats returns all counters tracked for a module
func (s *StatsService) ModuleStats(ctx context.Context, moduleID string) map[string]int64 {
	stats := map[string]int64{"downloads": 0}
	if s.redis == nil {
		return stats
	}

	fields, err := s.redis.GetAllHash(ctx, statsKey(moduleID))
	if err != nil {
		s.log.Warn("stats lookup failed", "module_id", moduleID, "error", err)
		return stats
	}

	for field, val := range fields {
		if count, err := strconv.ParseInt(val, 10, 64); err == nil {
			stats[field] = count
		}
	}

	return stats
}

func statsKey(moduleID string) string {
	return fmt.Sprintf("module:%s:stats", moduleID)
}
