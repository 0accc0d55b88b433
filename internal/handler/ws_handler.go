package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/response"
	"github.com/stemsi/exstem-client/internal/service"
	"github.com/stemsi/exstem-client/internal/validator"
	ws "github.com/stemsi/exstem-client/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler relays session events to the exam UI over WebSocket.
type WSHandler struct {
	rdb            *redis.Client
	tabID          string
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, tabID string, sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		tabID:          tabID,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteError(w.conn, msg)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WritePing(w.conn)
}

// SessionEventStream godoc
// WS /ws/v1/sessions/:session_id/events
// Streams timer and submission events. The client may send
// {"action":"ping"} or {"action":"snapshot"}.
func (h *WSHandler) SessionEventStream(c *gin.Context) {
	sessionID, fields := validator.BindSession(c)
	if fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if _, err := h.sessionService.Get(sessionID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", sessionID).Logger()
	wsLog.Info().Msg("Client connected")

	ctx := c.Request.Context()
	pubsub := h.rdb.Subscribe(ctx, config.CacheKey.SessionEventsChannel(h.tabID, sessionID))
	defer pubsub.Close()

	out := &wsConn{conn: conn}
	done := make(chan struct{})
	go h.forward(out, pubsub.Channel(), done, wsLog)
	defer close(done)

	ws.KeepAlive(conn)
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			_ = out.write(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSnapshot:
			resp := ws.SnapshotResponse{Event: ws.EventSnapshot}
			if engine, err := h.sessionService.Get(sessionID); err == nil {
				resp.Payload = engine.Snapshot()
			}
			_ = out.write(resp)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = out.writeError("unknown action: " + string(msg.Action))
		}
	}
}

// forward relays published events and keeps the connection alive with pings.
func (h *WSHandler) forward(out *wsConn, ch <-chan *redis.Message, done <-chan struct{}, log zerolog.Logger) {
	pingTicker := time.NewTicker(ws.PingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event model.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Msg("Dropping malformed session event")
				continue
			}
			if err := out.write(ws.SessionEventResponse{Event: ws.EventSession, Payload: event}); err != nil {
				log.Debug().Err(err).Msg("Write event failed")
				return
			}
		case <-pingTicker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
