package jobs

import (
	"context"

	"github.com/wonny/surveyprogress/internal/coordinator"
	"github.com/wonny/surveyprogress/pkg/logger"
)

// CacheMaintainer result cache operations (coordinator.Coordinator)
type CacheMaintainer interface {
	CleanExpired() int
	CacheStats() coordinator.CacheStats
}

// CacheMaintenanceJob drops expired estimate results from memory
type CacheMaintenanceJob struct {
	cache  CacheMaintainer
	logger *logger.Logger
}

// NewCacheMaintenanceJob creates a new cache maintenance job
func NewCacheMaintenanceJob(cache CacheMaintainer, log *logger.Logger) *CacheMaintenanceJob {
	return &CacheMaintenanceJob{
		cache:  cache,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheMaintenanceJob) Name() string {
	return "cache_maintenance"
}

// Schedule returns the cron schedule (every 10 minutes)
func (j *CacheMaintenanceJob) Schedule() string {
	return "0 */10 * * * *"
}

// Run removes expired entries and logs the cache state
func (j *CacheMaintenanceJob) Run(ctx context.Context) error {
	removed := j.cache.CleanExpired()
	stats := j.cache.CacheStats()

	j.logger.WithFields(map[string]interface{}{
		"removed":  removed,
		"entries":  stats.Entries,
		"hit_rate": stats.HitRate,
	}).Info("Estimate cache maintenance completed")

	return nil
}
