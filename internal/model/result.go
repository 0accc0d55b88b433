package model

import (
	"encoding/json"
	"time"
)

// ExamSummary is the best-effort timing summary reported by the backend.
// Any field may be absent.
type ExamSummary struct {
	RemainingTime        *float64 `json:"remainingTime,omitempty"`
	RemainingTimeMinutes *float64 `json:"remainingTimeMinutes,omitempty"`
	DurationMinutes      *float64 `json:"durationMinutes,omitempty"`
}

// ExamResult is the graded outcome returned by the backend after submission.
// Details keeps backend-specific fields for the results view untouched.
type ExamResult struct {
	SessionID      string          `json:"sessionId"`
	Score          *float64        `json:"score,omitempty"`
	CorrectCount   *int            `json:"correctCount,omitempty"`
	TotalQuestions *int            `json:"totalQuestions,omitempty"`
	SubmittedAt    *time.Time      `json:"submittedAt,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
}
