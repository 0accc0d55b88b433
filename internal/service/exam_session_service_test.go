package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/repository"
)

const testTab = "tab-test"

type serviceFixture struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	backend  *fakeBackend
	queue    *fakeQueue
	notifier *recordingNotifier
	clock    *fakeClock
	svc      *ExamSessionService
}

func newServiceFixture(t *testing.T, backend *fakeBackend, allowRetry bool) *serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &serviceFixture{
		mr:       mr,
		rdb:      rdb,
		backend:  backend,
		queue:    &fakeQueue{},
		notifier: &recordingNotifier{},
		clock:    newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.svc = NewExamSessionService(
		repository.NewSessionStore(rdb, testTab, time.Hour),
		repository.NewResultStore(rdb, testTab, time.Hour),
		repository.NewViewCacheRepository(rdb, testTab),
		backend,
		f.queue,
		f.notifier,
		ServiceOptions{
			// Zero interval: the tests drive the countdown with Tick.
			TickInterval:           0,
			SubmitTimeout:          time.Second,
			AllowRetryAfterTimeout: allowRetry,
			Now:                    f.clock.Now,
		},
		zerolog.Nop(),
	)
	t.Cleanup(f.svc.Shutdown)
	return f
}

func (f *serviceFixture) stage(t *testing.T, sessionID, payload string) {
	t.Helper()
	_, err := f.svc.Stage(context.Background(), sessionID, []byte(payload))
	require.NoError(t, err)
}

const threeQuestionPayload = `{
  "questions": [
    {"id": "q1", "text": "first", "options": ["one", "two", "three", "four"]},
    {"question_id": "q2", "question": "second", "choices": [{"id": "x", "text": "a"}, {"id": "y", "text": "b"}]},
    {"_id": "q3", "prompt": "third", "options": {"w": "red", "z": "blue", "v": "green"}}
  ],
  "startTime": "2026-03-01T08:50:01Z",
  "durationMinutes": 10
}`

func TestExamSessionService_TimeoutSubmitsAnsweredOnly(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{summaryErr: errNetwork}, false)
	f.stage(t, "s-1", threeQuestionPayload)
	require.NoError(t, f.mr.Set("tab:"+testTab+":view:history:s-1", "cached"))

	ctx := context.Background()
	engine, err := f.svc.Enter(ctx, "s-1")
	require.NoError(t, err)

	snap := engine.Snapshot()
	require.NotNil(t, snap.RemainingSeconds)
	assert.Equal(t, 1, *snap.RemainingSeconds)

	letter, err := engine.SelectAnswer("q1", "C")
	require.NoError(t, err)
	assert.Equal(t, "C", letter)
	engine.GoTo(2)
	letter, err = engine.SelectAnswer("q3", "z")
	require.NoError(t, err)
	assert.Equal(t, "B", letter)
	flagged, err := engine.ToggleFlag("q2")
	require.NoError(t, err)
	assert.True(t, flagged)

	remaining, ok := engine.Tick()
	require.True(t, ok)
	assert.Equal(t, 0, remaining)

	assert.Equal(t, int32(1), f.backend.submitCalls.Load())
	assert.Equal(t, model.AnswerMap{"q1": "C", "q3": "B"}, f.backend.lastSubmitted())
	assert.Equal(t, model.SubmissionSubmitted, engine.SubmissionState())

	// A further tick on the stale engine never submits again.
	_, _ = engine.Tick()
	assert.Equal(t, int32(1), f.backend.submitCalls.Load())
	assert.Equal(t, 1, f.notifier.count(model.EventTimerExpired))
	assert.Equal(t, 1, f.notifier.count(model.EventNavigateResults))

	// Completion tears the session down and leaves the result for one read.
	_, err = f.svc.Get("s-1")
	assert.True(t, errors.Is(err, model.ErrSessionNotActive))
	assert.False(t, f.mr.Exists(config.CacheKey.SessionPayloadKey(testTab, "s-1")))
	assert.False(t, f.mr.Exists("tab:"+testTab+":view:history:s-1"))

	result, err := f.svc.TakeResult(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", result.SessionID)
	_, err = f.svc.TakeResult(ctx, "s-1")
	assert.True(t, errors.Is(err, model.ErrResultNotFound))
}

func TestExamSessionService_SummaryTakesPriority(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{summary: &model.ExamSummary{RemainingTime: floatPtr(45)}}, false)
	// Stored timing alone would give 300 seconds.
	f.stage(t, "s-1", `{"questions":[{"id":"q1","options":["a","b"]}],"startTime":"2026-03-01T08:55:00Z","durationMinutes":10}`)

	engine, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)

	snap := engine.Snapshot()
	require.NotNil(t, snap.RemainingSeconds)
	assert.Equal(t, 45, *snap.RemainingSeconds)
}

func TestExamSessionService_SummaryFailureHidesTimer(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{summaryErr: errNetwork}, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]},{"id":"q2","options":["a","b"]}]`)

	ctx := context.Background()
	engine, err := f.svc.Enter(ctx, "s-1")
	require.NoError(t, err)

	snap := engine.Snapshot()
	assert.Nil(t, snap.RemainingSeconds)
	_, ok := engine.Tick()
	assert.False(t, ok)

	_, err = engine.SelectAnswer("q2", "A")
	require.NoError(t, err)
	result, err := engine.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-1", result.SessionID)
	assert.Equal(t, model.AnswerMap{"q2": "A"}, f.backend.lastSubmitted())
}

func TestExamSessionService_EnterIsIdempotent(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{}, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)

	first, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)
	_, err = first.SelectAnswer("q1", "B")
	require.NoError(t, err)

	second, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, f.svc.Active())
	assert.Equal(t, model.AnswerMap{"q1": "B"}, second.Snapshot().Answers)
}

func TestExamSessionService_LoadErrors(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{}, false)
	ctx := context.Background()

	_, err := f.svc.Enter(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))

	for id, raw := range map[string]string{
		"empty-list": `[]`,
		"not-json":   `{"questions":`,
		"no-ids":     `[{"text":"anonymous"}]`,
	} {
		require.NoError(t, f.mr.Set(config.CacheKey.SessionPayloadKey(testTab, id), raw))
		_, err := f.svc.Enter(ctx, id)
		assert.True(t, errors.Is(err, model.ErrSessionCorrupt), id)
	}
	assert.Zero(t, f.svc.Active())
}

func TestExamSessionService_ExpiredOnEntrySubmitsImmediately(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{summary: &model.ExamSummary{RemainingTime: floatPtr(0)}}, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)

	engine, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)

	assert.Equal(t, model.SubmissionSubmitted, engine.SubmissionState())
	assert.Equal(t, int32(1), f.backend.submitCalls.Load())
	assert.Equal(t, model.AnswerMap{}, f.backend.lastSubmitted())
	assert.Zero(t, f.svc.Active())
}

func TestExamSessionService_ManualAndTimeoutRace(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	f := newServiceFixture(t, backend, false)
	backend.summary = &model.ExamSummary{RemainingTime: floatPtr(1)}
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)

	engine, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)

	manual := make(chan error, 1)
	go func() {
		_, err := engine.Submit(context.Background())
		manual <- err
	}()
	require.Eventually(t, func() bool {
		return engine.SubmissionState() == model.SubmissionSubmitting
	}, time.Second, time.Millisecond)

	// The timer reaches zero while the manual submit is in flight.
	_, _ = engine.Tick()
	close(backend.gate)

	require.NoError(t, <-manual)
	assert.Equal(t, int32(1), backend.submitCalls.Load())
	assert.Equal(t, model.SubmissionSubmitted, engine.SubmissionState())
}

func TestExamSessionService_AnswersLockedAfterSubmit(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{}, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)

	engine, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)
	_, err = engine.Submit(context.Background())
	require.NoError(t, err)

	_, err = engine.SelectAnswer("q1", "A")
	assert.True(t, errors.Is(err, model.ErrAlreadySubmitted))
}

func TestExamSessionService_NavigationResetsAnchor(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{}, false)
	f.stage(t, "s-1", threeQuestionPayload)

	engine, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)

	f.clock.Advance(4 * time.Second)
	assert.Equal(t, 1, engine.Next())
	f.clock.Advance(6 * time.Second)
	_, err = engine.SelectAnswer("q2", "y")
	require.NoError(t, err)

	// Staying on the last question does not move the anchor.
	assert.Equal(t, 2, engine.Next())
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 2, engine.Next())
	f.clock.Advance(1 * time.Second)
	_, err = engine.SelectAnswer("q3", "w")
	require.NoError(t, err)

	tasks := f.queue.snapshot()
	require.Len(t, tasks, 2)
	assert.Equal(t, model.AnswerSyncRequest{QuestionID: "q2", SelectedAnswer: "B", TimeSpentSeconds: 6}, tasks[0])
	assert.Equal(t, model.AnswerSyncRequest{QuestionID: "q3", SelectedAnswer: "A", TimeSpentSeconds: 3}, tasks[1])

	snap := engine.Snapshot()
	assert.Equal(t, "q3", snap.CurrentQuestion.ID)
	assert.InDelta(t, 66.666, snap.Progress, 0.01)
}

func TestExamSessionService_LeaveKeepsPayload(t *testing.T) {
	f := newServiceFixture(t, &fakeBackend{}, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)

	_, err := f.svc.Enter(context.Background(), "s-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Leave("s-1"))
	assert.True(t, errors.Is(f.svc.Leave("s-1"), model.ErrSessionNotActive))
	assert.True(t, f.mr.Exists(config.CacheKey.SessionPayloadKey(testTab, "s-1")))
	assert.Zero(t, f.backend.submitCalls.Load())
}

func TestExamSessionService_LeaveRefusedWhileSubmitting(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	f := newServiceFixture(t, backend, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)
	ctx := context.Background()

	engine, err := f.svc.Enter(ctx, "s-1")
	require.NoError(t, err)

	manual := make(chan error, 1)
	go func() {
		_, err := engine.Submit(ctx)
		manual <- err
	}()
	require.Eventually(t, func() bool {
		return engine.SubmissionState() == model.SubmissionSubmitting
	}, time.Second, time.Millisecond)

	assert.True(t, errors.Is(f.svc.Leave("s-1"), model.ErrSubmissionInFlight))
	again, err := f.svc.Enter(ctx, "s-1")
	require.NoError(t, err)
	assert.Same(t, engine, again)

	close(backend.gate)
	require.NoError(t, <-manual)
	assert.Zero(t, f.svc.Active())

	// The completed session cannot be entered and submitted a second time.
	_, err = f.svc.Enter(ctx, "s-1")
	assert.True(t, errors.Is(err, model.ErrSessionNotFound))
	assert.Equal(t, int32(1), backend.submitCalls.Load())
}

func TestExamSessionService_LeftEngineCannotSubmit(t *testing.T) {
	backend := &fakeBackend{}
	f := newServiceFixture(t, backend, false)
	f.stage(t, "s-1", `[{"id":"q1","options":["a","b"]}]`)
	ctx := context.Background()

	left, err := f.svc.Enter(ctx, "s-1")
	require.NoError(t, err)
	require.NoError(t, f.svc.Leave("s-1"))

	live, err := f.svc.Enter(ctx, "s-1")
	require.NoError(t, err)
	require.NotSame(t, left, live)

	_, err = left.Submit(ctx)
	assert.True(t, errors.Is(err, model.ErrSessionNotActive))
	_, err = left.SelectAnswer("q1", "A")
	assert.True(t, errors.Is(err, model.ErrSessionNotActive))
	assert.Zero(t, backend.submitCalls.Load())

	// Releasing an engine that is no longer registered leaves the live one.
	f.svc.release("s-1", left)
	got, err := f.svc.Get("s-1")
	require.NoError(t, err)
	assert.Same(t, live, got)

	_, err = live.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), backend.submitCalls.Load())
}

func TestExamSessionService_SlowSummaryDoesNotBlockOtherSessions(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{slowSummary: map[string]chan struct{}{"slow": gate}}
	f := newServiceFixture(t, backend, false)
	f.stage(t, "fast", `[{"id":"q1","options":["a","b"]}]`)
	f.stage(t, "slow", `[{"id":"q1","options":["a","b"]}]`)
	ctx := context.Background()

	fast, err := f.svc.Enter(ctx, "fast")
	require.NoError(t, err)

	type entered struct {
		engine *ExamSessionEngine
		err    error
	}
	slow := make(chan entered, 2)
	for i := 0; i < 2; i++ {
		go func() {
			e, err := f.svc.Enter(ctx, "slow")
			slow <- entered{e, err}
		}()
	}
	require.Eventually(t, func() bool { return backend.summaryCalls.Load() == 2 }, time.Second, time.Millisecond)

	got := make(chan *ExamSessionEngine, 1)
	go func() {
		e, _ := f.svc.Get("fast")
		got <- e
	}()
	select {
	case e := <-got:
		assert.Same(t, fast, e)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Get blocked while another session's summary fetch was pending")
	}

	close(gate)
	first, second := <-slow, <-slow
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Same(t, first.engine, second.engine)
	assert.Equal(t, int32(2), backend.summaryCalls.Load())
	assert.Equal(t, 2, f.svc.Active())
}
