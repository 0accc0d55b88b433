package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/stemsi/exstem-client/internal/model"
)

const (
	DefaultSummaryTimeout = 5 * time.Second
	cleanupTimeout        = 5 * time.Second
)

// SessionRepository is the tab-scoped session payload store.
type SessionRepository interface {
	Load(ctx context.Context, sessionID string) (*model.ExamSession, error)
	Save(ctx context.Context, sessionID string, payload []byte) (*model.ExamSession, error)
	Delete(ctx context.Context, sessionID string) error
}

// ResultRepository stores results for a single read by the results view.
type ResultRepository interface {
	ResultSaver
	TakeResult(ctx context.Context, sessionID string) (*model.ExamResult, error)
}

// ExamBackend is the part of the remote backend the registry calls directly.
// Per-answer sync goes through the AnswerQueue instead.
type ExamBackend interface {
	ExamSubmitter
	GetExamSummary(ctx context.Context, sessionID string) (*model.ExamSummary, error)
}

// ServiceOptions tunes the engines a service creates.
type ServiceOptions struct {
	TickInterval           time.Duration
	SubmitTimeout          time.Duration
	SummaryTimeout         time.Duration
	AllowRetryAfterTimeout bool
	Now                    func() time.Time
}

// ExamSessionService keeps at most one running engine per session ID.
type ExamSessionService struct {
	sessions SessionRepository
	results  ResultRepository
	views    ViewInvalidator
	backend  ExamBackend
	queue    AnswerQueue
	notifier Notifier
	opts     ServiceOptions
	log      zerolog.Logger

	mu      sync.Mutex
	engines map[string]*ExamSessionEngine

	// entering coalesces concurrent Enter calls for one session ID.
	entering singleflight.Group
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessions SessionRepository,
	results ResultRepository,
	views ViewInvalidator,
	backend ExamBackend,
	queue AnswerQueue,
	notifier Notifier,
	opts ServiceOptions,
	log zerolog.Logger,
) *ExamSessionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = DefaultSummaryTimeout
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ExamSessionService{
		sessions: sessions,
		results:  results,
		views:    views,
		backend:  backend,
		queue:    queue,
		notifier: notifier,
		opts:     opts,
		log:      log.With().Str("component", "exam_session_service").Logger(),
		engines:  make(map[string]*ExamSessionEngine),
	}
}

// Stage stores a session payload handed over by the exam-start flow.
func (s *ExamSessionService) Stage(ctx context.Context, sessionID string, payload []byte) (*model.ExamSession, error) {
	sess, err := s.sessions.Save(ctx, sessionID, payload)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("session_id", sessionID).
		Int("questions", len(sess.Questions)).
		Msg("Session payload staged")
	return sess, nil
}

// Enter loads the session and starts its engine. Entering a session that is
// already running returns the live engine.
func (s *ExamSessionService) Enter(ctx context.Context, sessionID string) (*ExamSessionEngine, error) {
	if e, ok := s.lookup(sessionID); ok {
		return e, nil
	}

	// Every caller waiting on the flight shares its result, so one caller
	// going away must not cancel it for the others.
	v, err, _ := s.entering.Do(sessionID, func() (interface{}, error) {
		return s.enter(context.WithoutCancel(ctx), sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ExamSessionEngine), nil
}

// enter builds the engine without holding the registry lock; loading and the
// summary fetch are network calls.
func (s *ExamSessionService) enter(ctx context.Context, sessionID string) (*ExamSessionEngine, error) {
	if e, ok := s.lookup(sessionID); ok {
		return e, nil
	}

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	remaining := ResolveRemaining(s.fetchSummary(ctx, sessionID), sess, s.opts.Now())

	e := NewExamSessionEngine(sess, remaining, s.backend, s.queue, s.results, s.views, s.notifier, EngineOptions{
		TickInterval:           s.opts.TickInterval,
		SubmitTimeout:          s.opts.SubmitTimeout,
		AllowRetryAfterTimeout: s.opts.AllowRetryAfterTimeout,
		Now:                    s.opts.Now,
	}, s.log)
	e.onSubmitted = func(*model.ExamResult) { s.release(sessionID, e) }

	s.mu.Lock()
	if live, ok := s.engines[sessionID]; ok {
		s.mu.Unlock()
		return live, nil
	}
	s.engines[sessionID] = e
	s.mu.Unlock()

	evt := s.log.Info().
		Str("session_id", sessionID).
		Int("questions", len(sess.Questions))
	if remaining != nil {
		evt = evt.Int("remaining_seconds", *remaining)
	}
	evt.Msg("Session entered")

	// Started outside the lock: a countdown already at zero submits
	// synchronously and the success hook takes the lock again.
	e.Start(context.Background())
	return e, nil
}

func (s *ExamSessionService) lookup(sessionID string) (*ExamSessionEngine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[sessionID]
	return e, ok
}

// fetchSummary asks the backend for timing once. Failures leave the timer to
// the stored values or hidden.
func (s *ExamSessionService) fetchSummary(ctx context.Context, sessionID string) *model.ExamSummary {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SummaryTimeout)
	defer cancel()

	summary, err := s.backend.GetExamSummary(ctx, sessionID)
	if err != nil {
		s.log.Warn().
			Err(fmt.Errorf("%w: %v", model.ErrSummaryFetchFailed, err)).
			Str("session_id", sessionID).
			Msg("Using stored timing")
		return nil
	}
	return summary
}

// Get returns the running engine for sessionID.
func (s *ExamSessionService) Get(sessionID string) (*ExamSessionEngine, error) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return nil, model.ErrSessionNotActive
	}
	return e, nil
}

// Leave stops the engine and discards its in-memory state. The staged
// payload stays so the session can be entered again. A session whose
// submission is in flight cannot be left.
func (s *ExamSessionService) Leave(sessionID string) error {
	s.mu.Lock()
	e, ok := s.engines[sessionID]
	if !ok {
		s.mu.Unlock()
		return model.ErrSessionNotActive
	}
	if err := e.submission.Detach(); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.engines, sessionID)
	s.mu.Unlock()

	e.Close()
	s.log.Info().Str("session_id", sessionID).Msg("Session left")
	return nil
}

// TakeResult returns the stored result once.
func (s *ExamSessionService) TakeResult(ctx context.Context, sessionID string) (*model.ExamResult, error) {
	return s.results.TakeResult(ctx, sessionID)
}

// Active returns how many engines are running.
func (s *ExamSessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// Shutdown stops every running engine.
func (s *ExamSessionService) Shutdown() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*ExamSessionEngine)
	s.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
	s.log.Info().Int("count", len(engines)).Msg("Session engines stopped")
}

// release unregisters e after its submission succeeded and drops the staged
// payload. Only e itself is removed; an engine entered later under the same
// ID stays.
func (s *ExamSessionService) release(sessionID string, e *ExamSessionEngine) {
	s.mu.Lock()
	if s.engines[sessionID] == e {
		delete(s.engines, sessionID)
	}
	s.mu.Unlock()

	e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("Delete staged payload error")
	}
	s.log.Info().Str("session_id", sessionID).Msg("Session completed")
}
