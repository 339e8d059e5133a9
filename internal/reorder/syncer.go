package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reorder-go/internal/model"
)

// Replica is the local side of a sync: the in-memory canonical snapshot and
// a way to replace it with one that came from the linked file.
type Replica interface {
	Current() model.Snapshot
	// Adopt persists snap without restamping UpdatedAt and makes it the
	// canonical in-memory snapshot.
	Adopt(snap model.Snapshot) (model.Snapshot, error)
}

// Syncer runs the file sync protocol against one linked file at a time.
type Syncer struct {
	replica    Replica
	normalizer *Normalizer
	handles    HandleStore
	opener     Opener
	history    History
	clock      Clock
	logger     Logger

	mu      sync.Mutex
	state   State
	syncing bool
}

// SyncerOption configures optional Syncer collaborators.
type SyncerOption func(*Syncer)

// WithHandleStore persists the link reference across sessions.
func WithHandleStore(h HandleStore, o Opener) SyncerOption {
	return func(s *Syncer) {
		s.handles = h
		s.opener = o
	}
}

// WithHistory records every completed sync attempt.
func WithHistory(h History) SyncerOption {
	return func(s *Syncer) { s.history = h }
}

// NewSyncer creates a Syncer in the unlinked state.
func NewSyncer(replica Replica, normalizer *Normalizer, clock Clock, logger Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		replica:    replica,
		normalizer: normalizer,
		clock:      clock,
		logger:     logger,
		state:      InitialState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current sync state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Syncer) apply(ev Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Transition(s.state, ev)
	return s.state
}

// Link asks picker for a file and makes it the active link. A cancelled pick
// returns (nil, nil) and leaves the state untouched.
func (s *Syncer) Link(ctx context.Context, picker Picker) (*SyncLink, error) {
	file, err := picker.Pick(ctx)
	if errors.Is(err, ErrCancelled) {
		s.logger.Debug("link cancelled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("picking sync file: %w", err)
	}

	if s.handles != nil {
		if err := s.handles.Put(file.Ref()); err != nil {
			s.logger.Warn("could not persist sync link", "ref", file.Ref(), "error", err)
		}
	}
	st := s.apply(EventLinked{File: file})
	s.logger.Info("sync file linked", "name", file.Name())
	return st.SyncLink(), nil
}

// Resume reopens a link persisted by an earlier session. It never prompts; a
// link whose permission is not granted is restored with auto-sync off.
func (s *Syncer) Resume(ctx context.Context) (*SyncLink, error) {
	if s.handles == nil || s.opener == nil {
		return nil, nil
	}
	ref, err := s.handles.Get()
	if err != nil {
		s.logger.Warn("could not read persisted sync link", "error", err)
		return nil, nil
	}
	if ref == "" {
		return nil, nil
	}
	file, err := s.opener.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("reopening sync link %q: %w", ref, err)
	}
	perm, err := file.QueryPermission(ctx)
	if err != nil {
		s.logger.Warn("permission query failed", "ref", ref, "error", err)
		perm = PermissionDenied
	}
	st := s.apply(EventResumed{File: file, Granted: perm == PermissionGranted})
	return st.SyncLink(), nil
}

// ClearLink drops the active link and any pending conflict.
func (s *Syncer) ClearLink() {
	if s.handles != nil {
		if err := s.handles.Delete(); err != nil {
			s.logger.Warn("could not delete persisted sync link", "error", err)
		}
	}
	s.apply(EventCleared{})
	s.logger.Info("sync link cleared")
}

// Sync runs one sync attempt and returns the resulting state. It is safe to
// call repeatedly. A call made while another sync is running is dropped and
// returns the current state. Once started, the attempt ignores cancellation
// of ctx and runs to completion.
func (s *Syncer) Sync(ctx context.Context, trigger Trigger) State {
	s.mu.Lock()
	if s.syncing {
		st := s.state
		s.mu.Unlock()
		s.logger.Debug("sync already running, dropped", "trigger", trigger)
		return st
	}
	link := s.state.Link
	if link == nil {
		s.state = Transition(s.state, EventNotLinked{})
		st := s.state
		s.mu.Unlock()
		return st
	}
	var pending *model.Snapshot
	if s.state.PendingRemote != nil {
		p := s.state.PendingRemote.Clone()
		pending = &p
	}
	s.syncing = true
	s.state = Transition(s.state, EventSyncStarted{})
	s.mu.Unlock()

	started := s.clock.Now()
	ev := s.run(context.WithoutCancel(ctx), link, trigger, pending)

	s.mu.Lock()
	s.syncing = false
	if s.state.Link == link {
		s.state = Transition(s.state, ev)
	} else {
		s.logger.Debug("link changed during sync, result discarded")
	}
	st := s.state
	s.mu.Unlock()

	s.record(SyncRecord{
		Trigger:    trigger,
		Status:     st.Status,
		Detail:     st.Detail,
		StartedAt:  started,
		FinishedAt: s.clock.Now(),
	})
	return st
}

func (s *Syncer) run(ctx context.Context, link LinkedFile, trigger Trigger, pending *model.Snapshot) Event {
	if ev := s.authorize(ctx, link, trigger); ev != nil {
		return ev
	}

	local := s.replica.Current()
	now := canonicalTime(s.clock.Now())

	if pending != nil {
		merged := s.normalizer.Merge(local, *pending, now)
		if err := s.push(ctx, link, merged); err != nil {
			return s.failure("writing merged snapshot", err)
		}
		if _, err := s.replica.Adopt(merged); err != nil {
			return s.failure("adopting merged snapshot", err)
		}
		s.logger.Info("conflict resolved by merge", "items", len(merged.Items))
		return EventSynced{At: now, Detail: "Merged local and sync file changes."}
	}

	text, err := link.Read(ctx)
	if err != nil {
		return s.failure("reading sync file", err)
	}
	remote := s.normalizer.ParsePayload(text)
	if remote.Kind != PayloadOK {
		if remote.Kind == PayloadMalformed {
			s.logger.Warn("sync file unreadable, overwriting with local snapshot", "error", remote.Err)
		}
		if err := s.push(ctx, link, local); err != nil {
			return s.failure("writing sync file", err)
		}
		return EventSynced{At: now, Detail: fmt.Sprintf("Saved to %s.", link.Name())}
	}

	localHash, err := StructuralHash(local)
	if err != nil {
		return s.failure("hashing local snapshot", err)
	}
	remoteHash, err := StructuralHash(remote.Snapshot)
	if err != nil {
		return s.failure("hashing remote snapshot", err)
	}
	if localHash == remoteHash {
		return EventSynced{
			At:     laterOf(local.UpdatedAt, remote.Snapshot.UpdatedAt),
			Detail: "Already up to date.",
		}
	}

	switch {
	case local.UpdatedAt.After(remote.Snapshot.UpdatedAt):
		if err := s.push(ctx, link, local); err != nil {
			return s.failure("writing sync file", err)
		}
		return EventSynced{At: now, Detail: fmt.Sprintf("Saved to %s.", link.Name())}
	case remote.Snapshot.UpdatedAt.After(local.UpdatedAt):
		if _, err := s.replica.Adopt(remote.Snapshot); err != nil {
			return s.failure("adopting remote snapshot", err)
		}
		return EventSynced{At: now, Detail: fmt.Sprintf("Loaded from %s.", link.Name())}
	default:
		s.logger.Warn("sync conflict", "updatedAt", local.UpdatedAt.Format(time.RFC3339Nano))
		return EventConflict{Remote: remote.Snapshot}
	}
}

// authorize returns a terminal event when the link may not be used.
func (s *Syncer) authorize(ctx context.Context, link LinkedFile, trigger Trigger) Event {
	perm, err := link.QueryPermission(ctx)
	if err != nil {
		return s.failure("querying permission", err)
	}
	if perm == PermissionPrompt && trigger == TriggerManual {
		perm, err = link.RequestPermission(ctx)
		if err != nil {
			return s.failure("requesting permission", err)
		}
	}
	switch perm {
	case PermissionGranted:
		return nil
	case PermissionPrompt:
		s.logger.Info("auto sync paused, permission needs a prompt", "name", link.Name())
		return EventPermissionLost{}
	default:
		s.logger.Warn("sync file permission denied", "name", link.Name())
		return EventPermissionLost{}
	}
}

func (s *Syncer) push(ctx context.Context, link LinkedFile, snap model.Snapshot) error {
	payload, err := BuildPayload(snap)
	if err != nil {
		return err
	}
	return link.Write(ctx, payload)
}

// failure classifies an error into a permission or transient event.
func (s *Syncer) failure(op string, err error) Event {
	if errors.Is(err, ErrPermissionDenied) {
		s.logger.Warn("sync permission lost", "op", op, "error", err)
		return EventPermissionLost{}
	}
	s.logger.Error("sync failed", "op", op, "error", err)
	return EventFailed{Err: fmt.Errorf("%s: %w", op, err)}
}

func (s *Syncer) record(rec SyncRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordSync(rec); err != nil {
		s.logger.Warn("could not record sync history", "error", err)
	}
}
