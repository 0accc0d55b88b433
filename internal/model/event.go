package model

import (
	"time"
)

// SessionEventType enumerates notifications the engine emits to observers.
type SessionEventType string

const (
	EventTimerTick        SessionEventType = "timer_tick"
	EventTimerExpired     SessionEventType = "timer_expired"
	EventSubmitting       SessionEventType = "submitting"
	EventSubmitted        SessionEventType = "submitted"
	EventSubmissionFailed SessionEventType = "submission_failed"
	EventNavigateResults  SessionEventType = "navigate_results"
)

// SessionEvent is a single notification published on the session channel.
type SessionEvent struct {
	Type             SessionEventType `json:"type"`
	SessionID        string           `json:"session_id"`
	RemainingSeconds *int             `json:"remaining_seconds,omitempty"`
	Reason           SubmitReason     `json:"reason,omitempty"`
	Retryable        bool             `json:"retryable,omitempty"`
	Error            string           `json:"error,omitempty"`
	Result           *ExamResult      `json:"result,omitempty"`
	At               time.Time        `json:"at"`
}
