package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
)

func TestRedisNotifier_PublishesOnSessionChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(testTab, "s-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	remaining := 12
	NewRedisNotifier(rdb, testTab, zerolog.Nop()).Notify(ctx, model.SessionEvent{
		Type:             model.EventTimerTick,
		SessionID:        "s-1",
		RemainingSeconds: &remaining,
	})

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got model.SessionEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, model.EventTimerTick, got.Type)
	require.NotNil(t, got.RemainingSeconds)
	assert.Equal(t, 12, *got.RemainingSeconds)
}
