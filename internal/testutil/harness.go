package testutil

import (
	"context"
	"testing"

	"reorder-go/internal/kv"
	"reorder-go/internal/linkfile"
	"reorder-go/internal/reorder"
)

// Context is one fully wired app context: its own service and local store
// handle, sharing a device bus with any sibling contexts.
type Context struct {
	Clock      *StubClock
	IDs        *StubIDGenerator
	Timers     *ManualTimers
	Bus        *kv.MemoryBus
	KV         *kv.MemoryStore
	Normalizer *reorder.Normalizer
	Store      *reorder.LocalStore
	Service    *reorder.Service
}

// NewContext builds a context on a fresh bus with a fixed clock and manual
// timers. Extra options are applied after the defaults.
func NewContext(t *testing.T, opts ...reorder.ServiceOption) *Context {
	t.Helper()
	return newContext(t, kv.NewMemoryBus(), FixedClock(), opts...)
}

// Sibling opens another context on the same bus and clock, like a second
// browser tab on the same device.
func (c *Context) Sibling(t *testing.T, opts ...reorder.ServiceOption) *Context {
	t.Helper()
	return newContext(t, c.Bus, c.Clock, opts...)
}

func newContext(t *testing.T, bus *kv.MemoryBus, clock *StubClock, opts ...reorder.ServiceOption) *Context {
	t.Helper()
	c := &Context{
		Clock:  clock,
		IDs:    NewStubIDGenerator(),
		Timers: NewManualTimers(),
		Bus:    bus,
		KV:     bus.Open(),
	}
	logger := reorder.NewNopLogger()
	c.Normalizer = reorder.NewNormalizer(c.Clock, c.IDs)
	c.Store = reorder.NewLocalStore(c.KV, c.Normalizer, c.Clock, logger)
	all := append([]reorder.ServiceOption{reorder.WithAfterFunc(c.Timers.AfterFunc)}, opts...)
	c.Service = reorder.NewService(c.Store, c.Normalizer, c.Clock, c.IDs, logger, all...)
	t.Cleanup(func() {
		c.Service.Close()
		c.KV.Close()
	})
	return c
}

// Link links file to the context's service and fails the test on error.
func (c *Context) Link(t *testing.T, file reorder.LinkedFile) {
	t.Helper()
	picker := reorder.PickerFunc(func(context.Context) (reorder.LinkedFile, error) { return file, nil })
	if _, err := c.Service.Link(context.Background(), picker); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
}

// NewTestFile creates an in-memory linked file with permission granted.
func NewTestFile(name string) *linkfile.MemoryFile {
	return linkfile.NewMemoryFile(name)
}
