package service

import (
	"fmt"
	"sync"

	"github.com/stemsi/exstem-client/internal/model"
)

// FlagManager tracks questions marked for review. Flags are local only and
// never affect scoring or submission.
type FlagManager struct {
	mu      sync.Mutex
	session *model.ExamSession
	flagged map[string]struct{}
}

func NewFlagManager(session *model.ExamSession) *FlagManager {
	return &FlagManager{
		session: session,
		flagged: make(map[string]struct{}),
	}
}

// Toggle flips the flag on questionID and returns the new flag value.
func (f *FlagManager) Toggle(questionID string) (bool, error) {
	if f.session.QuestionIndex(questionID) < 0 {
		return false, fmt.Errorf("%w: %s", model.ErrUnknownQuestion, questionID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.flagged[questionID]; ok {
		delete(f.flagged, questionID)
		return false, nil
	}
	f.flagged[questionID] = struct{}{}
	return true, nil
}

func (f *FlagManager) IsFlagged(questionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.flagged[questionID]
	return ok
}

// Flags lists flagged question IDs in question order.
func (f *FlagManager) Flags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.flagged))
	for _, q := range f.session.Questions {
		if _, ok := f.flagged[q.ID]; ok {
			out = append(out, q.ID)
		}
	}
	return out
}
