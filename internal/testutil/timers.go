package testutil

import (
	"sync"
	"time"

	"reorder-go/internal/reorder"
)

// ManualTimers is a reorder.AfterFunc that only fires when told to.
type ManualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	owner   *ManualTimers
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func NewManualTimers() *ManualTimers {
	return &ManualTimers{}
}

// AfterFunc records f without running it. Pass m.AfterFunc wherever a
// reorder.AfterFunc is expected.
func (m *ManualTimers) AfterFunc(d time.Duration, f func()) reorder.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{owner: m, delay: d, fn: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Pending returns how many timers are neither stopped nor fired.
func (m *ManualTimers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Created returns how many timers were ever scheduled.
func (m *ManualTimers) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// LastDelay returns the delay of the most recent timer.
func (m *ManualTimers) LastDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return 0
	}
	return m.timers[len(m.timers)-1].delay
}

// FireAll runs every pending timer in creation order on the calling goroutine
// and returns how many ran.
func (m *ManualTimers) FireAll() int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}
