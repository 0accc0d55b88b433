package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
)

// Notifier receives session events. The engine depends on this interface
// instead of any global event bus.
type Notifier interface {
	Notify(ctx context.Context, event model.SessionEvent)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, model.SessionEvent) {}

// RedisNotifier publishes events on the per-session Redis channel so any
// subscriber (the UI event stream, another tab) can follow along.
type RedisNotifier struct {
	rdb   *redis.Client
	tabID string
	log   zerolog.Logger
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(rdb *redis.Client, tabID string, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{
		rdb:   rdb,
		tabID: tabID,
		log:   log.With().Str("component", "redis_notifier").Logger(),
	}
}

// Notify publishes the event. Failures are logged and dropped.
func (n *RedisNotifier) Notify(ctx context.Context, event model.SessionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Msg("Marshal event error")
		return
	}

	channel := config.CacheKey.SessionEventsChannel(n.tabID, event.SessionID)
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.Warn().Err(err).
			Str("session_id", event.SessionID).
			Str("event", string(event.Type)).
			Msg("Publish event failed")
	}
}
