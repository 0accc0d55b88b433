package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/model"
)

const (
	DefaultAnswerSyncQueueSize = 256
	AnswerSyncCallTimeout      = 10 * time.Second
	// AnswerSyncDrainTimeout bounds how long shutdown keeps flushing the queue.
	AnswerSyncDrainTimeout = 2 * time.Second
)

// AnswerSubmitter is the backend call the worker forwards answers to.
type AnswerSubmitter interface {
	SubmitAnswer(ctx context.Context, sessionID string, req model.AnswerSyncRequest) error
}

type answerTask struct {
	SessionID string
	Request   model.AnswerSyncRequest
}

// AnswerSyncWorker is a best-effort queue for per-answer sync calls.
// Enqueue never blocks and nothing is retried: the final submission carries
// the authoritative answers, so a lost sync only costs telemetry.
type AnswerSyncWorker struct {
	backend AnswerSubmitter
	queue   chan answerTask
	log     zerolog.Logger
}

// NewAnswerSyncWorker creates a new AnswerSyncWorker.
func NewAnswerSyncWorker(backend AnswerSubmitter, queueSize int, log zerolog.Logger) *AnswerSyncWorker {
	if queueSize <= 0 {
		queueSize = DefaultAnswerSyncQueueSize
	}
	return &AnswerSyncWorker{
		backend: backend,
		queue:   make(chan answerTask, queueSize),
		log:     log.With().Str("component", "answer_sync_worker").Logger(),
	}
}

// Enqueue schedules a sync call. It reports false when the queue is full and
// the task was dropped.
func (w *AnswerSyncWorker) Enqueue(sessionID string, req model.AnswerSyncRequest) bool {
	select {
	case w.queue <- answerTask{SessionID: sessionID, Request: req}:
		return true
	default:
		w.log.Warn().
			Str("session_id", sessionID).
			Str("question_id", req.QuestionID).
			Msg("Answer sync queue full, dropping")
		return false
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerSyncWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), AnswerSyncDrainTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		case task := <-w.queue:
			w.process(ctx, task)
		}
	}
}

func (w *AnswerSyncWorker) process(ctx context.Context, task answerTask) {
	callCtx, cancel := context.WithTimeout(ctx, AnswerSyncCallTimeout)
	defer cancel()

	if err := w.backend.SubmitAnswer(callCtx, task.SessionID, task.Request); err != nil {
		err = fmt.Errorf("%w: %v", model.ErrAnswerSyncFailed, err)
		w.log.Warn().Err(err).
			Str("session_id", task.SessionID).
			Str("question_id", task.Request.QuestionID).
			Msg("Answer sync failed, not retrying")
		return
	}

	w.log.Debug().
		Str("session_id", task.SessionID).
		Str("question_id", task.Request.QuestionID).
		Int("time_spent_seconds", task.Request.TimeSpentSeconds).
		Msg("Answer synced")
}

// drain sends what is still queued until ctx expires.
func (w *AnswerSyncWorker) drain(ctx context.Context) {
	drained := 0
	for {
		select {
		case task := <-w.queue:
			if ctx.Err() != nil {
				return
			}
			w.process(ctx, task)
			drained++
		default:
			if drained > 0 {
				w.log.Info().Int("count", drained).Msg("Drained remaining items")
			}
			return
		}
	}
}
