package kv

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"reorder-go/internal/config"
	"reorder-go/internal/reorder"
)

func TestDirStore_GetSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := NewDirStore(dir, reorder.NewNopLogger())
	if err != nil {
		t.Fatalf("NewDirStore() error = %v", err)
	}

	if _, ok, err := s.Get(reorder.StorageKey); ok || err != nil {
		t.Fatalf("Get() on empty store = ok %v, err %v", ok, err)
	}

	if err := s.Set(reorder.StorageKey, `{"items":[]}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(reorder.StorageKey)
	if err != nil || !ok || got != `{"items":[]}` {
		t.Errorf("Get() = %q, %v, %v", got, ok, err)
	}

	if _, err := os.Stat(filepath.Join(dir, reorder.StorageKey)); err != nil {
		t.Errorf("expected one file per key: %v", err)
	}
}

func TestDirStore_KeysAreEscaped(t *testing.T) {
	s, err := NewDirStore(t.TempDir(), reorder.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("a/b", "v"); err != nil {
		t.Fatalf("Set() with slash in key error = %v", err)
	}
	if got, ok, _ := s.Get("a/b"); !ok || got != "v" {
		t.Errorf("Get(a/b) = %q, %v", got, ok)
	}
}

func TestDirStore_UpdateSerializesStores(t *testing.T) {
	dir := t.TempDir()
	a, err := NewDirStore(dir, reorder.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewDirStore(dir, reorder.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, s := range []*DirStore{a, b} {
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Update("n", increment); err != nil {
					t.Errorf("Update() error = %v", err)
				}
			}()
		}
	}
	wg.Wait()

	if got, _, _ := b.Get("n"); got != "50" {
		t.Errorf("counter = %s, want 50", got)
	}
}

func TestDirStore_WatchReportsOtherWriters(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewDirStore(dir, reorder.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewDirStore(dir, reorder.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	changes, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Own writes are suppressed, so the first change seen is the other store's.
	if err := watcher.Set("k", "mine"); err != nil {
		t.Fatal(err)
	}
	if err := other.Set("k", "theirs"); err != nil {
		t.Fatal(err)
	}

	for {
		c := receive(t, changes)
		if c.Value == "mine" {
			t.Fatal("watcher reported its own write")
		}
		if c.Key == "k" && c.Value == "theirs" {
			return
		}
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StoreConfig{Type: "memory"}},
		{name: "dir", cfg: config.StoreConfig{Type: "dir", Dir: t.TempDir()}},
		{name: "dir without path", cfg: config.StoreConfig{Type: "dir"}, wantErr: true},
		{name: "unknown", cfg: config.StoreConfig{Type: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromConfig(tt.cfg, reorder.NewNopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != nil {
				got.Close()
			}
		})
	}
}
