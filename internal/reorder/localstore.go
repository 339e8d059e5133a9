package reorder

import (
	"fmt"

	"reorder-go/internal/model"
)

// StorageKey is the single KV slot holding the serialized snapshot.
const StorageKey = "reorder-or-buy-again.state"

// LocalStore persists the canonical snapshot in a KVStore with a
// monotonically increasing revision.
type LocalStore struct {
	kv         KVStore
	normalizer *Normalizer
	clock      Clock
	logger     Logger
}

// NewLocalStore creates a LocalStore over kv.
func NewLocalStore(kv KVStore, normalizer *Normalizer, clock Clock, logger Logger) *LocalStore {
	return &LocalStore{
		kv:         kv,
		normalizer: normalizer,
		clock:      clock,
		logger:     logger,
	}
}

// SaveOption adjusts a single Save call.
type SaveOption func(*saveOptions)

type saveOptions struct {
	keepUpdatedAt bool
}

// KeepUpdatedAt preserves the candidate's UpdatedAt instead of stamping now.
// Used when adopting a snapshot that came from the linked file or a merge.
func KeepUpdatedAt() SaveOption {
	return func(o *saveOptions) { o.keepUpdatedAt = true }
}

// Load returns the stored snapshot, or the starter snapshot when nothing
// usable is stored.
func (s *LocalStore) Load() model.Snapshot {
	raw, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		s.logger.Warn("reading local snapshot failed, using defaults", "error", err)
		return s.normalizer.Starter()
	}
	if !ok {
		return s.normalizer.Starter()
	}
	result := s.normalizer.ParseSnapshot([]byte(raw))
	if !result.OK() {
		s.logger.Warn("stored snapshot is malformed, using defaults", "error", result.Err)
		return s.normalizer.Starter()
	}
	return result.Snapshot
}

// Save normalizes candidate and writes it with revision
// max(candidate.Revision, storedRevision)+1. The stored revision is read and
// replaced in one KVStore.Update, so every context sharing the store sees a
// strictly increasing revision and a stale copy never rolls it backward.
func (s *LocalStore) Save(candidate model.Snapshot, opts ...SaveOption) (model.Snapshot, error) {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	var snap model.Snapshot
	err := s.kv.Update(StorageKey, func(old string, ok bool) (string, error) {
		snap = s.normalizer.Normalize(candidate)
		snap.Revision = max(snap.Revision, s.revisionOf(old, ok)) + 1
		if !o.keepUpdatedAt || snap.UpdatedAt.IsZero() {
			snap.UpdatedAt = canonicalTime(s.clock.Now())
		}
		data, err := Serialize(snap)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("writing local snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved", "revision", snap.Revision, "items", len(snap.Items))
	return snap, nil
}

// revisionOf extracts the revision of a stored value, treating absent or
// corrupt data as 0.
func (s *LocalStore) revisionOf(raw string, ok bool) int64 {
	if !ok {
		return 0
	}
	result := s.normalizer.ParseSnapshot([]byte(raw))
	if !result.OK() {
		return 0
	}
	return result.Snapshot.Revision
}
