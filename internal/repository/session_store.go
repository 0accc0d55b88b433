package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/question"
)

// SessionStore reads and writes staged exam session payloads in the
// tab-scoped Redis namespace.
type SessionStore struct {
	rdb   *redis.Client
	tabID string
	ttl   time.Duration
}

// NewSessionStore creates a new SessionStore. A zero ttl keeps payloads forever.
func NewSessionStore(rdb *redis.Client, tabID string, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, tabID: tabID, ttl: ttl}
}

// Load reads and parses the payload for sessionID. It never deletes the
// stored payload; cleanup belongs to the caller.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*model.ExamSession, error) {
	key := config.CacheKey.SessionPayloadKey(s.tabID, sessionID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session payload: %w", err)
	}

	return question.ParseSession(sessionID, data)
}

// Save stores a payload after checking that it parses. Corrupt payloads are
// rejected here so Load never sees them from this path.
func (s *SessionStore) Save(ctx context.Context, sessionID string, payload []byte) (*model.ExamSession, error) {
	sess, err := question.ParseSession(sessionID, payload)
	if err != nil {
		return nil, err
	}

	key := config.CacheKey.SessionPayloadKey(s.tabID, sessionID)
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("set session payload: %w", err)
	}
	return sess, nil
}

// Delete removes the staged payload. Deleting a missing payload is not an error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	key := config.CacheKey.SessionPayloadKey(s.tabID, sessionID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete session payload: %w", err)
	}
	return nil
}
