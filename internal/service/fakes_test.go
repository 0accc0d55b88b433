package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/stemsi/exstem-client/internal/model"
)

var errNetwork = errors.New("dial tcp: connection refused")

type fakeBackend struct {
	mu          sync.Mutex
	submitCalls atomic.Int32
	submitted   []model.AnswerMap
	submitErr   error
	// gate, when set, blocks SubmitExam until it is closed.
	gate chan struct{}

	summary      *model.ExamSummary
	summaryErr   error
	summaryCalls atomic.Int32
	// slowSummary blocks GetExamSummary for the listed sessions until the
	// channel is closed.
	slowSummary map[string]chan struct{}
}

func (f *fakeBackend) SubmitExam(ctx context.Context, sessionID string, req model.SubmitExamRequest) (*model.ExamResult, error) {
	f.submitCalls.Inc()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.submitted = append(f.submitted, req.Answers.Clone())
	err := f.submitErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	score := float64(len(req.Answers))
	return &model.ExamResult{SessionID: sessionID, Score: &score}, nil
}

func (f *fakeBackend) GetExamSummary(ctx context.Context, sessionID string) (*model.ExamSummary, error) {
	f.summaryCalls.Inc()
	if gate, ok := f.slowSummary[sessionID]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.summary, nil
}

func (f *fakeBackend) setSubmitErr(err error) {
	f.mu.Lock()
	f.submitErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) lastSubmitted() model.AnswerMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return nil
	}
	return f.submitted[len(f.submitted)-1]
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []model.AnswerSyncRequest
}

func (q *fakeQueue) Enqueue(_ string, req model.AnswerSyncRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, req)
	return true
}

func (q *fakeQueue) snapshot() []model.AnswerSyncRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.AnswerSyncRequest(nil), q.tasks...)
}

type fakeResults struct {
	mu    sync.Mutex
	saved map[string]*model.ExamResult
}

func (r *fakeResults) SaveResult(_ context.Context, sessionID string, result *model.ExamResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = make(map[string]*model.ExamResult)
	}
	r.saved[sessionID] = result
	return nil
}

type fakeViews struct {
	calls atomic.Int32
}

func (v *fakeViews) InvalidateExamViews(context.Context) (int, error) {
	v.calls.Inc()
	return 0, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event model.SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []model.SessionEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.SessionEventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

func (n *recordingNotifier) count(t model.SessionEventType) int {
	c := 0
	for _, got := range n.types() {
		if got == t {
			c++
		}
	}
	return c
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func threeQuestionSession(id string) *model.ExamSession {
	opts := func(prefix string) []model.Option {
		return []model.Option{
			{ID: prefix + "-a", Label: "one"},
			{ID: prefix + "-b", Label: "two"},
			{ID: prefix + "-c", Label: "three"},
			{ID: prefix + "-d", Label: "four"},
		}
	}
	return &model.ExamSession{
		SessionID: id,
		Questions: []model.ExamQuestion{
			{ID: "q1", Text: "first", Options: opts("q1")},
			{ID: "q2", Text: "second", Options: opts("q2")},
			{ID: "q3", Text: "third", Options: opts("q3")},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
