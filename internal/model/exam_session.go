package model

import (
	"fmt"
	"time"
)

// ExamSession is the read-only unit handed to the engine once an exam has been
// started elsewhere. StartTime and DurationMinutes are optional; without them
// the countdown can only come from the backend summary.
type ExamSession struct {
	SessionID       string         `json:"session_id"`
	Questions       []ExamQuestion `json:"questions" validate:"required,min=1,dive"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	DurationMinutes *float64       `json:"duration_minutes,omitempty"`
}

// QuestionIndex returns the position of a question by ID, or -1.
func (s *ExamSession) QuestionIndex(questionID string) int {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return i
		}
	}
	return -1
}

// SubmissionState enumerates the terminal-transition states of a session.
// Transitions only move forward: NotSubmitted -> Submitting -> Submitted.
// Failed is reached when a submission attempt errors and is not reset.
type SubmissionState int32

const (
	SubmissionNotSubmitted SubmissionState = iota
	SubmissionSubmitting
	SubmissionSubmitted
	SubmissionFailed
)

func (s SubmissionState) String() string {
	switch s {
	case SubmissionNotSubmitted:
		return "NOT_SUBMITTED"
	case SubmissionSubmitting:
		return "SUBMITTING"
	case SubmissionSubmitted:
		return "SUBMITTED"
	case SubmissionFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s SubmissionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *SubmissionState) UnmarshalText(text []byte) error {
	for _, st := range []SubmissionState{SubmissionNotSubmitted, SubmissionSubmitting, SubmissionSubmitted, SubmissionFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown submission state %q", text)
}

// SubmitReason identifies what triggered a submission.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
)
