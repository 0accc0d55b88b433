package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/validator"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
)

// MonitorHandler streams a session's events over SSE for displays that do
// not speak WebSocket (proctor screen, kiosk shell).
type MonitorHandler struct {
	rdb            *redis.Client
	tabID          string
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	tabID string,
	sessionService *service.ExamSessionService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		tabID:          tabID,
		sessionService: sessionService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/sessions/:session_id/monitor
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	sessionID, fields := validator.BindSession(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	engine, err := h.sessionService.Get(sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}

	reqCtx := c.Request.Context()

	// 1. SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// 2. Subscribe before the snapshot so no event falls in between.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.SessionEventsChannel(h.tabID, sessionID))
	defer pubsub.Close()
	ch := pubsub.Channel()

	// 3. Initial snapshot
	h.sendSnapshot(c, engine)

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("session_id", sessionID).Msg("Monitor attached")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("session_id", sessionID).Msg("Monitor detached")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly, no deserialization needed
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write([]byte(msg.Payload))
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			// The engine is gone once the session completes or is left.
			engine, err = h.sessionService.Get(sessionID)
			if err != nil {
				return
			}
			h.sendSnapshot(c, engine)

		case <-keepAliveTicker.C:
			_, _ = c.Writer.Write([]byte("data: {\"type\":\"ping\"}\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, engine *service.ExamSessionEngine) {
	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": engine.Snapshot(),
	})
	c.Writer.Flush()
}

