package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-client/internal/config"
)

const viewScanCount = 100

// ViewCacheRepository manages cached analytics, leaderboard and history views
// that become stale once an exam outcome changes.
type ViewCacheRepository struct {
	rdb   *redis.Client
	tabID string
}

// NewViewCacheRepository creates a new ViewCacheRepository.
func NewViewCacheRepository(rdb *redis.Client, tabID string) *ViewCacheRepository {
	return &ViewCacheRepository{rdb: rdb, tabID: tabID}
}

// InvalidateExamViews deletes every cached view depending on exam outcomes
// and returns how many keys were removed.
func (r *ViewCacheRepository) InvalidateExamViews(ctx context.Context) (int, error) {
	var keys []string
	for _, pattern := range config.CacheKey.ExamOutcomeViewPatterns(r.tabID) {
		iter := r.rdb.Scan(ctx, 0, pattern, viewScanCount).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return 0, fmt.Errorf("scan %s: %w", pattern, err)
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}

	pipe := r.rdb.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete views: %w", err)
	}
	return len(keys), nil
}
