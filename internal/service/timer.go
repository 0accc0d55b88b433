package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/stemsi/exstem-client/internal/model"
)

// ResolveRemaining picks the countdown start in priority order:
//  1. the backend's remaining time (seconds, else minutes),
//  2. the backend's total duration as a fresh countdown,
//  3. the stored duration minus time elapsed since the stored start.
//
// It returns nil when no source applies. Values are floored to whole seconds
// and never negative.
func ResolveRemaining(summary *model.ExamSummary, sess *model.ExamSession, now time.Time) *int {
	if summary != nil {
		if v, ok := positiveSeconds(summary.RemainingTime, 1); ok {
			return &v
		}
		if v, ok := positiveSeconds(summary.RemainingTimeMinutes, 60); ok {
			return &v
		}
		if v, ok := positiveSeconds(summary.DurationMinutes, 60); ok {
			return &v
		}
	}

	if sess != nil && sess.DurationMinutes != nil && sess.StartTime != nil {
		total := time.Duration(*sess.DurationMinutes * float64(time.Minute))
		remaining := sess.StartTime.Add(total).Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		secs := int(remaining / time.Second)
		return &secs
	}

	return nil
}

func positiveSeconds(v *float64, scale float64) (int, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	secs := math.Floor(*v * scale)
	if secs < 0 {
		secs = 0
	}
	return int(secs), true
}

// Timer counts remaining exam seconds down once per interval. A nil remaining
// value means no countdown is available and the timer stays inert.
// Reaching zero calls onExpire exactly once; ticking stops there.
type Timer struct {
	mu        sync.Mutex
	remaining *int
	expired   bool
	interval  time.Duration
	cancel    context.CancelFunc

	onTick   func(remaining int)
	onExpire func()
}

// NewTimer creates a stopped Timer with no remaining time.
func NewTimer(interval time.Duration, onTick func(remaining int), onExpire func()) *Timer {
	return &Timer{
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Set replaces the remaining seconds, floored at zero.
func (t *Timer) Set(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.mu.Lock()
	t.remaining = &seconds
	t.mu.Unlock()
}

// Remaining returns the remaining seconds; ok is false while no countdown exists.
func (t *Timer) Remaining() (seconds int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining == nil {
		return 0, false
	}
	return *t.remaining, true
}

// Tick decrements the countdown by one second.
func (t *Timer) Tick() (seconds int, ok bool) {
	t.mu.Lock()
	if t.remaining == nil {
		t.mu.Unlock()
		return 0, false
	}
	changed := false
	if *t.remaining > 0 {
		*t.remaining--
		changed = true
	}
	seconds = *t.remaining
	fire := seconds == 0 && !t.expired
	if fire {
		t.expired = true
	}
	t.mu.Unlock()

	if changed && t.onTick != nil {
		t.onTick(seconds)
	}
	if fire && t.onExpire != nil {
		t.onExpire()
	}
	return seconds, true
}

// Start runs the ticking loop until ctx is done, Stop is called or zero is
// reached. A countdown that is already at zero expires immediately. Start is a
// no-op without a countdown or with a non-positive interval.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	if t.remaining == nil || t.cancel != nil {
		t.mu.Unlock()
		return
	}
	atZero := *t.remaining == 0 && !t.expired
	if atZero {
		t.expired = true
	}
	var loopCtx context.Context
	if t.interval > 0 && !atZero {
		loopCtx, t.cancel = context.WithCancel(ctx)
	}
	t.mu.Unlock()

	if atZero {
		if t.onExpire != nil {
			t.onExpire()
		}
		return
	}
	if loopCtx != nil {
		go t.loop(loopCtx)
	}
}

func (t *Timer) loop(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if seconds, ok := t.Tick(); !ok || seconds == 0 {
				return
			}
		}
	}
}

// Stop cancels the ticking loop. It does not wait for the loop to exit, so it
// is safe to call from inside onExpire.
func (t *Timer) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
