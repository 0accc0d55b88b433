package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
)

// ResultStore keeps the final ExamResult until the results view reads it once.
type ResultStore struct {
	rdb   *redis.Client
	tabID string
	ttl   time.Duration
}

// NewResultStore creates a new ResultStore.
func NewResultStore(rdb *redis.Client, tabID string, ttl time.Duration) *ResultStore {
	return &ResultStore{rdb: rdb, tabID: tabID, ttl: ttl}
}

// SaveResult stores the result keyed by session ID, replacing any previous one.
func (s *ResultStore) SaveResult(ctx context.Context, sessionID string, result *model.ExamResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	key := config.CacheKey.ExamResultKey(s.tabID, sessionID)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

// TakeResult returns the stored result and removes it atomically.
func (s *ResultStore) TakeResult(ctx context.Context, sessionID string) (*model.ExamResult, error) {
	key := config.CacheKey.ExamResultKey(s.tabID, sessionID)

	data, err := s.rdb.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrResultNotFound
		}
		return nil, fmt.Errorf("getdel result: %w", err)
	}

	var result model.ExamResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}
