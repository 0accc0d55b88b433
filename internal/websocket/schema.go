package websocket

import "github.com/stemsi/exstem-client/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing     Action = "ping"
	ActionSnapshot Action = "snapshot"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventPong     Event = "pong"
	EventSession  Event = "session"
	EventSnapshot Event = "snapshot"
)

// SessionEventResponse relays one engine notification.
type SessionEventResponse struct {
	Event   Event              `json:"event"`
	Payload model.SessionEvent `json:"payload"`
}

// SnapshotResponse answers a snapshot action. Payload is nil once the
// session is no longer running.
type SnapshotResponse struct {
	Event   Event       `json:"event"`
	Payload interface{} `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
