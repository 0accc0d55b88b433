package model

import "errors"

// Load errors are terminal: the source payload is gone or unusable.
var (
	ErrSessionNotFound = errors.New("exam session not found")
	ErrSessionCorrupt  = errors.New("exam session payload is corrupt")
)

// Best-effort side channel errors. These are logged and swallowed.
var (
	ErrSummaryFetchFailed = errors.New("exam summary fetch failed")
	ErrAnswerSyncFailed   = errors.New("answer sync failed")
)

// Submission errors.
var (
	ErrSubmissionFailed   = errors.New("exam submission failed")
	ErrSubmissionInFlight = errors.New("exam submission already in progress")
	ErrAlreadySubmitted   = errors.New("exam already submitted")
	ErrSubmissionLocked   = errors.New("timed-out submission failed and cannot be retried")
)

// Answer selection errors.
var (
	ErrUnknownQuestion = errors.New("question does not belong to this session")
	ErrUnknownOption   = errors.New("option does not belong to this question")
	ErrNoAnswerLetter  = errors.New("option has no answer letter in A-D")
)

// ErrSessionNotActive is returned when no engine is running for a session ID.
var ErrSessionNotActive = errors.New("exam session is not active")

// ErrResultNotFound is returned when no stored result exists or it was already consumed.
var ErrResultNotFound = errors.New("exam result not found")
