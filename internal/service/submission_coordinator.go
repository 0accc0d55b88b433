package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/stemsi/exstem-client/internal/model"
)

// ExamSubmitter sends the authoritative final submission.
type ExamSubmitter interface {
	SubmitExam(ctx context.Context, sessionID string, req model.SubmitExamRequest) (*model.ExamResult, error)
}

// ResultSaver persists the result for the results view.
type ResultSaver interface {
	SaveResult(ctx context.Context, sessionID string, result *model.ExamResult) error
}

// ViewInvalidator drops cached views that depend on exam outcomes.
type ViewInvalidator interface {
	InvalidateExamViews(ctx context.Context) (int, error)
}

// SubmissionCoordinator owns the single transition from in-progress to
// submitted. The state is one atomic value; entering Submitting is a
// compare-and-swap, so of a timer expiry and a manual submit racing each
// other exactly one reaches the backend.
type SubmissionCoordinator struct {
	sessionID              string
	state                  *atomic.Int32
	detached               *atomic.Bool
	allowRetryAfterTimeout bool

	backend  ExamSubmitter
	results  ResultSaver
	views    ViewInvalidator
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger

	onSubmitted func(result *model.ExamResult)
}

// NewSubmissionCoordinator creates a coordinator in NotSubmitted state.
func NewSubmissionCoordinator(
	sessionID string,
	backend ExamSubmitter,
	results ResultSaver,
	views ViewInvalidator,
	notifier Notifier,
	allowRetryAfterTimeout bool,
	log zerolog.Logger,
) *SubmissionCoordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SubmissionCoordinator{
		sessionID:              sessionID,
		state:                  atomic.NewInt32(int32(model.SubmissionNotSubmitted)),
		detached:               atomic.NewBool(false),
		allowRetryAfterTimeout: allowRetryAfterTimeout,
		backend:                backend,
		results:                results,
		views:                  views,
		notifier:               notifier,
		now:                    time.Now,
		log:                    log.With().Str("component", "submission").Str("session_id", sessionID).Logger(),
	}
}

// State returns the current submission state.
func (c *SubmissionCoordinator) State() model.SubmissionState {
	return model.SubmissionState(c.state.Load())
}

// Detach retires the coordinator of an engine that is being left. It refuses
// once a submission has started; after it succeeds no submission can start.
func (c *SubmissionCoordinator) Detach() error {
	c.detached.Store(true)
	switch c.State() {
	case model.SubmissionSubmitting:
		c.detached.Store(false)
		return model.ErrSubmissionInFlight
	case model.SubmissionSubmitted:
		c.detached.Store(false)
		return model.ErrAlreadySubmitted
	}
	return nil
}

// AcceptingAnswers reports whether the AnswerMap may still change.
func (c *SubmissionCoordinator) AcceptingAnswers() error {
	if c.detached.Load() {
		return model.ErrSessionNotActive
	}
	switch c.State() {
	case model.SubmissionSubmitting:
		return model.ErrSubmissionInFlight
	case model.SubmissionSubmitted:
		return model.ErrAlreadySubmitted
	case model.SubmissionFailed:
		if !c.allowRetryAfterTimeout {
			return model.ErrSubmissionLocked
		}
	}
	return nil
}

// Submit performs the terminal transition. answers is read only after the
// guard is taken so the payload reflects the moment of submission.
//
// A failed manual submission returns to NotSubmitted so the user can retry.
// A failed timeout submission moves to Failed and is never retried here.
func (c *SubmissionCoordinator) Submit(ctx context.Context, reason model.SubmitReason, answers func() model.AnswerMap) (*model.ExamResult, error) {
	if err := c.acquire(reason); err != nil {
		return nil, err
	}

	payload := answers()
	c.notify(ctx, model.SessionEvent{Type: model.EventSubmitting, Reason: reason})
	c.log.Info().
		Str("reason", string(reason)).
		Int("answered", len(payload)).
		Msg("Submitting exam")

	result, err := c.backend.SubmitExam(ctx, c.sessionID, model.SubmitExamRequest{Answers: payload})
	if err != nil {
		retryable := reason == model.SubmitReasonManual
		if retryable {
			c.state.Store(int32(model.SubmissionNotSubmitted))
		} else {
			c.state.Store(int32(model.SubmissionFailed))
		}
		err = fmt.Errorf("%w: %v", model.ErrSubmissionFailed, err)
		c.log.Error().Err(err).
			Str("reason", string(reason)).
			Bool("retryable", retryable).
			Msg("Exam submission failed")
		c.notify(ctx, model.SessionEvent{
			Type:      model.EventSubmissionFailed,
			Reason:    reason,
			Retryable: retryable,
			Error:     err.Error(),
		})
		return nil, err
	}

	if result.SessionID == "" {
		result.SessionID = c.sessionID
	}
	c.finish(ctx, reason, result)
	return result, nil
}

func (c *SubmissionCoordinator) acquire(reason model.SubmitReason) error {
	if from, ok := c.take(reason); ok {
		// Detach stores its flag before reading the state, and this reads the
		// flag after the swap, so at least one of the two backs off.
		if c.detached.Load() {
			c.state.Store(int32(from))
			return model.ErrSessionNotActive
		}
		return nil
	}

	switch c.State() {
	case model.SubmissionSubmitting:
		return model.ErrSubmissionInFlight
	case model.SubmissionSubmitted:
		return model.ErrAlreadySubmitted
	case model.SubmissionFailed:
		return model.ErrSubmissionLocked
	default:
		// Lost a race against a failed manual attempt resetting the state.
		return model.ErrSubmissionInFlight
	}
}

func (c *SubmissionCoordinator) take(reason model.SubmitReason) (model.SubmissionState, bool) {
	if c.state.CompareAndSwap(int32(model.SubmissionNotSubmitted), int32(model.SubmissionSubmitting)) {
		return model.SubmissionNotSubmitted, true
	}
	if reason == model.SubmitReasonManual && c.allowRetryAfterTimeout &&
		c.state.CompareAndSwap(int32(model.SubmissionFailed), int32(model.SubmissionSubmitting)) {
		return model.SubmissionFailed, true
	}
	return 0, false
}

// finish runs the success side effects. Storage and cache failures are
// logged only: the backend already holds the authoritative result.
func (c *SubmissionCoordinator) finish(ctx context.Context, reason model.SubmitReason, result *model.ExamResult) {
	if c.results != nil {
		if err := c.results.SaveResult(ctx, c.sessionID, result); err != nil {
			c.log.Error().Err(err).Msg("Save result error")
		}
	}
	if c.views != nil {
		if n, err := c.views.InvalidateExamViews(ctx); err != nil {
			c.log.Warn().Err(err).Msg("Invalidate views error")
		} else {
			c.log.Debug().Int("keys", n).Msg("Exam views invalidated")
		}
	}

	c.state.Store(int32(model.SubmissionSubmitted))
	c.log.Info().Str("reason", string(reason)).Msg("Exam submitted")

	c.notify(ctx, model.SessionEvent{Type: model.EventSubmitted, Reason: reason, Result: result})
	c.notify(ctx, model.SessionEvent{Type: model.EventNavigateResults, Reason: reason})

	if c.onSubmitted != nil {
		c.onSubmitted(result)
	}
}

func (c *SubmissionCoordinator) notify(ctx context.Context, event model.SessionEvent) {
	event.SessionID = c.sessionID
	event.At = c.now()
	c.notifier.Notify(ctx, event)
}
