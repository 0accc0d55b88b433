package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/model"
)

// DefaultSubmitTimeout bounds a timeout-triggered submission, which has no
// caller context to inherit.
const DefaultSubmitTimeout = 30 * time.Second

// EngineOptions tunes a single session engine.
type EngineOptions struct {
	TickInterval           time.Duration
	SubmitTimeout          time.Duration
	AllowRetryAfterTimeout bool
	Now                    func() time.Time
}

// SessionSnapshot is the view of an engine handed to the UI.
type SessionSnapshot struct {
	SessionID        string                `json:"session_id"`
	CurrentIndex     int                   `json:"current_index"`
	TotalQuestions   int                   `json:"total_questions"`
	CurrentQuestion  model.ExamQuestion    `json:"current_question"`
	Answers          model.AnswerMap       `json:"answers"`
	Flags            []string              `json:"flags"`
	AnsweredCount    int                   `json:"answered_count"`
	Progress         float64               `json:"progress"`
	RemainingSeconds *int                  `json:"remaining_seconds"`
	SubmissionState  model.SubmissionState `json:"submission_state"`
}

// ExamSessionEngine ties the per-session components together. Timer expiry
// goes through the same SubmissionCoordinator as a manual submit.
type ExamSessionEngine struct {
	session    *model.ExamSession
	nav        *Navigator
	answers    *AnswerTracker
	flags      *FlagManager
	timer      *Timer
	submission *SubmissionCoordinator
	notifier   Notifier
	now        func() time.Time
	log        zerolog.Logger

	submitTimeout time.Duration
	onSubmitted   func(result *model.ExamResult)
	closeOnce     sync.Once
}

// NewExamSessionEngine builds an engine for sess. remaining is the resolved
// countdown; nil leaves the timer inert.
func NewExamSessionEngine(
	sess *model.ExamSession,
	remaining *int,
	backend ExamSubmitter,
	queue AnswerQueue,
	results ResultSaver,
	views ViewInvalidator,
	notifier Notifier,
	opts EngineOptions,
	log zerolog.Logger,
) *ExamSessionEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}

	e := &ExamSessionEngine{
		session:       sess,
		nav:           NewNavigator(len(sess.Questions)),
		answers:       NewAnswerTracker(sess, queue, opts.Now),
		flags:         NewFlagManager(sess),
		notifier:      notifier,
		now:           opts.Now,
		submitTimeout: opts.SubmitTimeout,
		log:           log.With().Str("component", "session_engine").Str("session_id", sess.SessionID).Logger(),
	}
	e.submission = NewSubmissionCoordinator(sess.SessionID, backend, results, views, notifier, opts.AllowRetryAfterTimeout, log)
	e.submission.now = opts.Now
	e.submission.onSubmitted = e.handleSubmitted
	e.answers.accepting = e.submission.AcceptingAnswers

	e.timer = NewTimer(opts.TickInterval, e.handleTick, e.handleExpire)
	if remaining != nil {
		e.timer.Set(*remaining)
	}

	if len(sess.Questions) > 0 {
		e.answers.MarkDisplayed(sess.Questions[0].ID)
	}
	return e
}

// SessionID returns the session identifier.
func (e *ExamSessionEngine) SessionID() string {
	return e.session.SessionID
}

// Start begins the countdown. A countdown already at zero submits immediately.
func (e *ExamSessionEngine) Start(ctx context.Context) {
	e.timer.Start(ctx)
}

// Tick advances the countdown by one second. The ticking loop calls it; it is
// exported for callers that drive time themselves.
func (e *ExamSessionEngine) Tick() (int, bool) {
	return e.timer.Tick()
}

// SelectAnswer records an answer unless a submission is in flight or done.
// An answer accepted here is always part of the submitted payload.
func (e *ExamSessionEngine) SelectAnswer(questionID, optionID string) (string, error) {
	return e.answers.SelectAnswer(questionID, optionID)
}

// ToggleFlag flips the review flag of questionID.
func (e *ExamSessionEngine) ToggleFlag(questionID string) (bool, error) {
	return e.flags.Toggle(questionID)
}

// Next moves to the following question.
func (e *ExamSessionEngine) Next() int {
	return e.display(e.nav.Next())
}

// Previous moves to the preceding question.
func (e *ExamSessionEngine) Previous() int {
	return e.display(e.nav.Previous())
}

// GoTo jumps to index, clamped into range.
func (e *ExamSessionEngine) GoTo(index int) int {
	return e.display(e.nav.GoTo(index))
}

func (e *ExamSessionEngine) display(index int, changed bool) int {
	if changed {
		e.answers.MarkDisplayed(e.session.Questions[index].ID)
	}
	return index
}

// Submit performs a manual submission.
func (e *ExamSessionEngine) Submit(ctx context.Context) (*model.ExamResult, error) {
	return e.submission.Submit(ctx, model.SubmitReasonManual, e.answers.Answers)
}

// SubmissionState returns the current submission state.
func (e *ExamSessionEngine) SubmissionState() model.SubmissionState {
	return e.submission.State()
}

// Snapshot returns the current session view.
func (e *ExamSessionEngine) Snapshot() SessionSnapshot {
	index := e.nav.Current()
	answered := e.answers.AnsweredCount()

	snap := SessionSnapshot{
		SessionID:       e.session.SessionID,
		CurrentIndex:    index,
		TotalQuestions:  e.nav.Count(),
		CurrentQuestion: e.session.Questions[index],
		Answers:         e.answers.Answers(),
		Flags:           e.flags.Flags(),
		AnsweredCount:   answered,
		Progress:        e.nav.Progress(answered),
		SubmissionState: e.submission.State(),
	}
	if secs, ok := e.timer.Remaining(); ok {
		snap.RemainingSeconds = &secs
	}
	return snap
}

// Close stops the countdown. Safe to call more than once.
func (e *ExamSessionEngine) Close() {
	e.closeOnce.Do(func() {
		e.timer.Stop()
		e.log.Debug().Msg("Session engine closed")
	})
}

func (e *ExamSessionEngine) handleTick(remaining int) {
	e.notifier.Notify(context.Background(), model.SessionEvent{
		Type:             model.EventTimerTick,
		SessionID:        e.session.SessionID,
		RemainingSeconds: &remaining,
		At:               e.now(),
	})
}

func (e *ExamSessionEngine) handleExpire() {
	zero := 0
	e.notifier.Notify(context.Background(), model.SessionEvent{
		Type:             model.EventTimerExpired,
		SessionID:        e.session.SessionID,
		RemainingSeconds: &zero,
		At:               e.now(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), e.submitTimeout)
	defer cancel()

	// Losing the race to a manual submit is expected and not an error here.
	if _, err := e.submission.Submit(ctx, model.SubmitReasonTimeout, e.answers.Answers); err != nil {
		e.log.Warn().Err(err).Msg("Timeout submission not completed")
	}
}

func (e *ExamSessionEngine) handleSubmitted(result *model.ExamResult) {
	e.timer.Stop()
	if e.onSubmitted != nil {
		e.onSubmitted(result)
	}
}
