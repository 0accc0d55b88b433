package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/question"
)

// AnswerQueue accepts best-effort answer sync tasks without blocking.
type AnswerQueue interface {
	Enqueue(sessionID string, req model.AnswerSyncRequest) bool
}

// AnswerTracker owns the AnswerMap of one session. Every selection is applied
// synchronously; the sync call it schedules never writes back into the map.
type AnswerTracker struct {
	mu      sync.Mutex
	session *model.ExamSession
	answers model.AnswerMap
	queue   AnswerQueue
	now     func() time.Time

	// accepting, when set, is checked under mu before every write. Answers
	// takes the same lock, so a snapshot taken after the check sees the write.
	accepting func() error

	anchorQuestion string
	anchorAt       time.Time
}

// NewAnswerTracker creates a tracker with an empty AnswerMap.
func NewAnswerTracker(session *model.ExamSession, queue AnswerQueue, now func() time.Time) *AnswerTracker {
	if now == nil {
		now = time.Now
	}
	return &AnswerTracker{
		session: session,
		answers: make(model.AnswerMap, len(session.Questions)),
		queue:   queue,
		now:     now,
	}
}

// MarkDisplayed starts the time-spent window for a question. Each entry into a
// question resets it; earlier visits are not accumulated.
func (a *AnswerTracker) MarkDisplayed(questionID string) {
	a.mu.Lock()
	a.anchorQuestion = questionID
	a.anchorAt = a.now()
	a.mu.Unlock()
}

// SelectAnswer records the answer letter for questionID, overwriting any
// previous one, and schedules a sync call carrying the time spent since the
// question was displayed.
func (a *AnswerTracker) SelectAnswer(questionID, optionID string) (string, error) {
	q, ok := a.session.Question(questionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownQuestion, questionID)
	}

	letter, err := question.ResolveAnswerLetter(*q, optionID)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	if a.accepting != nil {
		if err := a.accepting(); err != nil {
			a.mu.Unlock()
			return "", err
		}
	}
	a.answers[questionID] = letter
	spent := 0
	if a.anchorQuestion == questionID {
		spent = int(a.now().Sub(a.anchorAt) / time.Second)
		if spent < 0 {
			spent = 0
		}
	}
	a.mu.Unlock()

	if a.queue != nil {
		a.queue.Enqueue(a.session.SessionID, model.AnswerSyncRequest{
			QuestionID:       questionID,
			SelectedAnswer:   letter,
			TimeSpentSeconds: spent,
		})
	}
	return letter, nil
}

// Answers returns a copy of the current AnswerMap.
func (a *AnswerTracker) Answers() model.AnswerMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answers.Clone()
}

// AnsweredCount returns how many questions have an answer.
func (a *AnswerTracker) AnsweredCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.answers)
}
