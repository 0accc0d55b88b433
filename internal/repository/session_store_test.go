package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
)

func TestSessionStore_LoadShapes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, testTab, time.Hour)
	ctx := context.Background()

	require.NoError(t, mr.Set(config.CacheKey.SessionPayloadKey(testTab, "legacy"),
		`[{"id":"q1","options":["a","b"]}]`))
	require.NoError(t, mr.Set(config.CacheKey.SessionPayloadKey(testTab, "modern"),
		`{"questions":[{"id":"q1","options":["a","b"]},{"id":"q2"}],"startTime":"2026-03-01T08:00:00Z","durationMinutes":10}`))

	legacy, err := store.Load(ctx, "legacy")
	require.NoError(t, err)
	assert.Len(t, legacy.Questions, 1)
	assert.Nil(t, legacy.DurationMinutes)

	modern, err := store.Load(ctx, "modern")
	require.NoError(t, err)
	assert.Len(t, modern.Questions, 2)
	require.NotNil(t, modern.DurationMinutes)
	assert.Equal(t, 10.0, *modern.DurationMinutes)

	// Load is read-only.
	assert.True(t, mr.Exists(config.CacheKey.SessionPayloadKey(testTab, "modern")))
}

func TestSessionStore_LoadErrors(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, testTab, time.Hour)
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))

	require.NoError(t, mr.Set(config.CacheKey.SessionPayloadKey(testTab, "empty"), `[]`))
	_, err = store.Load(ctx, "empty")
	assert.True(t, errors.Is(err, model.ErrSessionCorrupt))

	require.NoError(t, mr.Set(config.CacheKey.SessionPayloadKey(testTab, "garbage"), `{not json`))
	_, err = store.Load(ctx, "garbage")
	assert.True(t, errors.Is(err, model.ErrSessionCorrupt))
}

func TestSessionStore_TabIsolation(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	first := NewSessionStore(rdb, "tab-a", time.Hour)
	second := NewSessionStore(rdb, "tab-b", time.Hour)

	_, err := first.Save(ctx, "s-1", []byte(`[{"id":"q1"}]`))
	require.NoError(t, err)

	_, err = second.Load(ctx, "s-1")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))
}

func TestSessionStore_SaveAndDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewSessionStore(rdb, testTab, 30*time.Minute)
	ctx := context.Background()
	key := config.CacheKey.SessionPayloadKey(testTab, "s-1")

	_, err := store.Save(ctx, "s-1", []byte(`{"questions":[]}`))
	assert.True(t, errors.Is(err, model.ErrSessionCorrupt))
	assert.False(t, mr.Exists(key))

	sess, err := store.Save(ctx, "s-1", []byte(`[{"id":"q1"}]`))
	require.NoError(t, err)
	assert.Equal(t, "s-1", sess.SessionID)
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	require.NoError(t, store.Delete(ctx, "s-1"))
	assert.False(t, mr.Exists(key))
	require.NoError(t, store.Delete(ctx, "s-1"))
}
