package service

import "sync"

// Navigator tracks the current question index, always clamped to
// [0, count-1].
type Navigator struct {
	mu    sync.Mutex
	index int
	count int
}

func NewNavigator(count int) *Navigator {
	return &Navigator{count: count}
}

// Next moves forward one question. changed is false at the last question.
func (n *Navigator) Next() (index int, changed bool) {
	return n.move(func(i int) int { return i + 1 })
}

// Previous moves back one question. changed is false at the first question.
func (n *Navigator) Previous() (index int, changed bool) {
	return n.move(func(i int) int { return i - 1 })
}

// GoTo jumps to target, clamped into range.
func (n *Navigator) GoTo(target int) (index int, changed bool) {
	return n.move(func(int) int { return target })
}

// Current returns the current index.
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Count returns the number of questions.
func (n *Navigator) Count() int {
	return n.count
}

// Progress returns answered/total as a percentage.
func (n *Navigator) Progress(answered int) float64 {
	if n.count == 0 {
		return 0
	}
	return float64(answered) / float64(n.count) * 100
}

func (n *Navigator) move(step func(int) int) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := step(n.index)
	if next > n.count-1 {
		next = n.count - 1
	}
	if next < 0 {
		next = 0
	}
	changed := next != n.index
	n.index = next
	return next, changed
}
