package kv

import (
	"context"
	"sync"

	"reorder-go/internal/reorder"
)

// MemoryBus is a shared in-memory key space. Every store opened on the bus
// sees the same data, and each Set is announced to every other open store,
// the way browser tabs share one origin's storage.
type MemoryBus struct {
	mu     sync.Mutex
	data   map[string]string
	stores map[*MemoryStore]struct{}
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		data:   make(map[string]string),
		stores: make(map[*MemoryStore]struct{}),
	}
}

// Open attaches a new store to the bus.
func (b *MemoryBus) Open() *MemoryStore {
	s := &MemoryStore{
		bus:  b,
		wake: make(chan struct{}, 1),
		out:  make(chan reorder.Change),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.stores[s] = struct{}{}
	b.mu.Unlock()
	go s.pump()
	return s
}

// MemoryStore is one context's view of a MemoryBus. Notifications are queued
// without bound so a slow reader never blocks writers, and are delivered in
// write order.
type MemoryStore struct {
	bus *MemoryBus

	mu    sync.Mutex
	queue []reorder.Change

	wake      chan struct{}
	out       chan reorder.Change
	done      chan struct{}
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	v, ok := s.bus.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	return s.Update(key, func(string, bool) (string, error) { return value, nil })
}

// Update runs fn and stores its result while holding the bus lock, so writes
// from every store on the bus are serialized.
func (s *MemoryStore) Update(key string, fn func(old string, ok bool) (string, error)) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	old, ok := s.bus.data[key]
	value, err := fn(old, ok)
	if err != nil {
		return err
	}
	s.bus.data[key] = value
	for other := range s.bus.stores {
		if other != s {
			other.enqueue(reorder.Change{Key: key, Value: value})
		}
	}
	return nil
}

// Changes delivers writes made through other stores on the bus. It is closed
// by Close.
func (s *MemoryStore) Changes() <-chan reorder.Change {
	return s.out
}

// Watch returns Changes and closes the store when ctx ends.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan reorder.Change, error) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s.out, nil
}

// Close detaches the store from the bus. Data written stays on the bus.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.stores, s)
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *MemoryStore) enqueue(c reorder.Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *MemoryStore) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, c := range batch {
			select {
			case s.out <- c:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
