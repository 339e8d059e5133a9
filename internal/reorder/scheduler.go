package reorder

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last local mutation before
// an automatic sync runs.
const DefaultDebounce = 900 * time.Millisecond

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc wraps time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler debounces local mutations into automatic syncs.
type Scheduler struct {
	syncer    *Syncer
	delay     time.Duration
	afterFunc AfterFunc
	logger    Logger

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	stopped bool
}

// NewScheduler creates a Scheduler. A non-positive delay uses DefaultDebounce
// and a nil afterFunc uses RealAfterFunc.
func NewScheduler(syncer *Syncer, delay time.Duration, afterFunc AfterFunc, logger Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if afterFunc == nil {
		afterFunc = RealAfterFunc
	}
	return &Scheduler{
		syncer:    syncer,
		delay:     delay,
		afterFunc: afterFunc,
		logger:    logger,
	}
}

// OnLocalMutation (re)starts the debounce timer. It does nothing when there is
// no link, auto-sync is off, or a conflict is waiting to be resolved.
func (s *Scheduler) OnLocalMutation() {
	if !s.syncer.State().AutoSyncEligible() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.afterFunc(s.delay, func() { s.fire(gen) })
}

// fire runs the sync for timer generation gen unless it was superseded.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.timer == nil || s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	if !s.syncer.State().AutoSyncEligible() {
		return
	}
	st := s.syncer.Sync(context.Background(), TriggerAuto)
	s.logger.Debug("auto sync finished", "status", st.Status)
}

// Pending reports whether a debounced sync is waiting to fire.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Cancel drops a pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Stop cancels any pending timer and ignores all further mutations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
