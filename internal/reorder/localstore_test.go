package reorder_test

import (
	"sync"
	"testing"
	"time"

	"reorder-go/internal/kv"
	"reorder-go/internal/reorder"
	"reorder-go/internal/testutil"
)

func newStore(t *testing.T, bus *kv.MemoryBus, clock *testutil.StubClock) (*reorder.LocalStore, *kv.MemoryStore) {
	t.Helper()
	store := bus.Open()
	t.Cleanup(func() { store.Close() })
	n := reorder.NewNormalizer(clock, testutil.NewStubIDGenerator())
	return reorder.NewLocalStore(store, n, clock, reorder.NewNopLogger()), store
}

func TestLocalStore_LoadDefaults(t *testing.T) {
	clock := testutil.FixedClock()

	t.Run("missing key", func(t *testing.T) {
		store, _ := newStore(t, kv.NewMemoryBus(), clock)
		got := store.Load()
		if len(got.Items) != 5 || got.Revision != 0 {
			t.Errorf("Load() = %d items rev %d, want starter", len(got.Items), got.Revision)
		}
	})

	t.Run("corrupt value", func(t *testing.T) {
		store, raw := newStore(t, kv.NewMemoryBus(), clock)
		if err := raw.Set(reorder.StorageKey, "{not json"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if got := store.Load(); len(got.Items) != 5 {
			t.Errorf("Load() of corrupt data = %d items, want starter", len(got.Items))
		}
	})
}

func TestLocalStore_SaveIncrementsRevision(t *testing.T) {
	clock := testutil.FixedClock()
	store, _ := newStore(t, kv.NewMemoryBus(), clock)

	snap := store.Load()
	for want := int64(1); want <= 3; want++ {
		saved, err := store.Save(snap)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if saved.Revision != want {
			t.Fatalf("Save() revision = %d, want %d", saved.Revision, want)
		}
		snap = saved
	}

	if got := store.Load(); got.Revision != 3 {
		t.Errorf("Load() revision = %d, want 3", got.Revision)
	}
}

func TestLocalStore_StaleCandidateNeverRollsBack(t *testing.T) {
	clock := testutil.FixedClock()
	store, _ := newStore(t, kv.NewMemoryBus(), clock)

	stale := store.Load()
	for i := 0; i < 2; i++ {
		if _, err := store.Save(store.Load()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	saved, err := store.Save(stale)
	if err != nil {
		t.Fatalf("Save(stale) error = %v", err)
	}
	if saved.Revision != 3 {
		t.Errorf("Save(stale) revision = %d, want 3", saved.Revision)
	}
}

func TestLocalStore_InterleavedContexts(t *testing.T) {
	clock := testutil.FixedClock()
	bus := kv.NewMemoryBus()
	a, _ := newStore(t, bus, clock)
	b, _ := newStore(t, bus, clock)

	fromA := a.Load()
	fromB := b.Load()

	var last int64
	steps := []struct {
		name  string
		store *reorder.LocalStore
	}{
		{"a writes", a},
		{"b writes from its stale copy", b},
		{"a writes from its stale copy", a},
		{"b writes again", b},
	}
	for i, step := range steps {
		candidate := fromA
		if step.store == b {
			candidate = fromB
		}
		saved, err := step.store.Save(candidate)
		if err != nil {
			t.Fatalf("%s: Save() error = %v", step.name, err)
		}
		if saved.Revision <= last {
			t.Fatalf("%s: revision %d did not increase past %d", step.name, saved.Revision, last)
		}
		last = saved.Revision
		if want := int64(i + 1); saved.Revision != want {
			t.Errorf("%s: revision = %d, want %d", step.name, saved.Revision, want)
		}
	}
}

func TestLocalStore_ConcurrentContextsNeverReuseRevision(t *testing.T) {
	clock := testutil.FixedClock()
	bus := kv.NewMemoryBus()
	a, _ := newStore(t, bus, clock)
	b, _ := newStore(t, bus, clock)
	base := a.Load()

	const perContext = 100
	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		wg   sync.WaitGroup
	)
	for _, store := range []*reorder.LocalStore{a, b} {
		for i := 0; i < perContext; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				saved, err := store.Save(base)
				if err != nil {
					t.Errorf("Save() error = %v", err)
					return
				}
				mu.Lock()
				seen[saved.Revision]++
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	if len(seen) != 2*perContext {
		t.Errorf("%d distinct revisions from %d saves", len(seen), 2*perContext)
	}
	for rev, n := range seen {
		if n > 1 {
			t.Errorf("revision %d issued %d times", rev, n)
		}
	}
	if got := b.Load().Revision; got != 2*perContext {
		t.Errorf("stored revision = %d, want %d", got, 2*perContext)
	}
}

func TestLocalStore_UpdatedAt(t *testing.T) {
	clock := testutil.FixedClock()
	store, _ := newStore(t, kv.NewMemoryBus(), clock)
	snap := store.Load()
	remoteTime := clock.Now().Add(-time.Hour)
	snap.UpdatedAt = remoteTime

	clock.Advance(time.Minute)

	kept, err := store.Save(snap, reorder.KeepUpdatedAt())
	if err != nil {
		t.Fatalf("Save(KeepUpdatedAt) error = %v", err)
	}
	if !kept.UpdatedAt.Equal(remoteTime) {
		t.Errorf("KeepUpdatedAt: UpdatedAt = %v, want %v", kept.UpdatedAt, remoteTime)
	}

	stamped, err := store.Save(snap)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !stamped.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("UpdatedAt = %v, want now %v", stamped.UpdatedAt, clock.Now())
	}
}

func TestLocalStore_SaveNormalizes(t *testing.T) {
	clock := testutil.FixedClock()
	store, _ := newStore(t, kv.NewMemoryBus(), clock)

	snap := store.Load()
	snap.Items[0].Quantity = -3
	snap.Items[0].Room = ""

	saved, err := store.Save(snap)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.Items[0].Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", saved.Items[0].Quantity)
	}
	if got := store.Load(); got.Items[0].Room != "Unassigned" {
		t.Errorf("stored Room = %q, want Unassigned", got.Items[0].Room)
	}
}
