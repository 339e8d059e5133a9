package kv

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"reorder-go/internal/fs"
	"reorder-go/internal/reorder"
)

// lockDirName holds per-key lock files, out of sight of the watcher.
const lockDirName = ".locks"

// DirStore keeps one file per key in a directory. Separate processes opening
// the same directory share data, and Watch reports their writes.
type DirStore struct {
	dir    string
	logger reorder.Logger
	ignore *fs.NameMatcher

	mu      sync.Mutex
	written map[string]string // last value this store wrote per key
}

var _ Store = (*DirStore)(nil)

// NewDirStore opens (creating if needed) a store rooted at dir.
func NewDirStore(dir string, logger reorder.Logger) (*DirStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, lockDirName), 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &DirStore{
		dir:     dir,
		logger:  logger,
		ignore:  fs.NewNameMatcher(append([]string{lockDirName}, fs.ScratchPatterns...)...),
		written: make(map[string]string),
	}, nil
}

// Dir returns the directory backing the store.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

func (s *DirStore) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, iofs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *DirStore) Set(key, value string) error {
	return s.Update(key, func(string, bool) (string, error) { return value, nil })
}

// Update holds an exclusive lock on key's lock file while it reads, runs fn
// and writes, so other processes updating the same directory wait their turn.
func (s *DirStore) Update(key string, fn func(old string, ok bool) (string, error)) error {
	lock := flock.New(filepath.Join(s.dir, lockDirName, url.PathEscape(key)))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", key, err)
	}
	defer lock.Unlock()

	old, ok, err := s.Get(key)
	if err != nil {
		return err
	}
	value, err := fn(old, ok)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fs.WriteFileAtomic(s.path(key), []byte(value), 0o600); err != nil {
		return err
	}
	s.written[key] = value
	return nil
}

// Watch streams writes to the directory made by anything other than this
// store. The channel closes when ctx ends.
func (s *DirStore) Watch(ctx context.Context) (<-chan reorder.Change, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	out := make(chan reorder.Change, 16)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				change, ok := s.convert(event)
				if !ok {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("store watcher error", "dir", s.dir, "error", err)
			}
		}
	}()
	return out, nil
}

// convert turns a filesystem event into a Change, skipping scratch files,
// removals and this store's own writes.
func (s *DirStore) convert(event fsnotify.Event) (reorder.Change, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return reorder.Change{}, false
	}
	name := filepath.Base(event.Name)
	if s.ignore.Match(name) {
		return reorder.Change{}, false
	}
	key, err := url.PathUnescape(name)
	if err != nil {
		return reorder.Change{}, false
	}
	value, ok, err := s.Get(key)
	if err != nil || !ok {
		return reorder.Change{}, false
	}

	s.mu.Lock()
	last, wrote := s.written[key]
	own := wrote && last == value
	s.mu.Unlock()
	if own {
		return reorder.Change{}, false
	}
	return reorder.Change{Key: key, Value: value}, true
}

// Close is a no-op; watchers stop with their context.
func (s *DirStore) Close() error { return nil }
