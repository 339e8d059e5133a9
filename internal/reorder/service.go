package reorder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"reorder-go/internal/model"
)

// ErrItemNotFound is returned by item operations given an unknown id.
var ErrItemNotFound = errors.New("item not found")

// ViewState is per-context UI state that must not survive adopting a
// snapshot written elsewhere.
type ViewState struct {
	PendingDeleteID string
	EditingItemID   string
}

// Service owns the canonical in-memory snapshot of one context and wires the
// local store, syncer and scheduler around it.
type Service struct {
	store      *LocalStore
	normalizer *Normalizer
	clock      Clock
	idgen      IDGenerator
	logger     Logger
	syncer     *Syncer
	scheduler  *Scheduler

	mu   sync.RWMutex
	snap model.Snapshot
	view ViewState
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	debounce  time.Duration
	afterFunc AfterFunc
	syncOpts  []SyncerOption
}

// WithDebounce overrides the auto-sync quiet period.
func WithDebounce(d time.Duration) ServiceOption {
	return func(o *serviceOptions) { o.debounce = d }
}

// WithAfterFunc replaces the timer source used by the scheduler.
func WithAfterFunc(f AfterFunc) ServiceOption {
	return func(o *serviceOptions) { o.afterFunc = f }
}

// WithSyncerOptions passes options through to the Syncer.
func WithSyncerOptions(opts ...SyncerOption) ServiceOption {
	return func(o *serviceOptions) { o.syncOpts = append(o.syncOpts, opts...) }
}

// NewService loads the stored snapshot and returns a ready Service.
func NewService(store *LocalStore, normalizer *Normalizer, clock Clock, idgen IDGenerator, logger Logger, opts ...ServiceOption) *Service {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{
		store:      store,
		normalizer: normalizer,
		clock:      clock,
		idgen:      idgen,
		logger:     logger,
	}
	s.snap = store.Load()
	s.syncer = NewSyncer(s, normalizer, clock, logger, o.syncOpts...)
	s.scheduler = NewScheduler(s.syncer, o.debounce, o.afterFunc, logger)
	return s
}

// Current returns a copy of the canonical snapshot.
func (s *Service) Current() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// View returns the current view state.
func (s *Service) View() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetView replaces the view state.
func (s *Service) SetView(v ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// Adopt persists a snapshot that came from the linked file without touching
// its UpdatedAt, and makes it canonical. It does not schedule a sync.
func (s *Service) Adopt(snap model.Snapshot) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.store.Save(snap, KeepUpdatedAt())
	if err != nil {
		return model.Snapshot{}, err
	}
	s.snap = saved
	return saved.Clone(), nil
}

// adoptExternal replaces the in-memory snapshot with one already persisted by
// another context, if it is strictly newer.
func (s *Service) adoptExternal(snap model.Snapshot) bool {
	s.mu.Lock()
	if snap.Revision <= s.snap.Revision {
		s.mu.Unlock()
		return false
	}
	s.snap = snap
	s.view = ViewState{}
	s.mu.Unlock()

	s.scheduler.OnLocalMutation()
	return true
}

// Mutate applies fn to a copy of the snapshot, persists the result and
// schedules an auto-sync. If fn returns an error nothing is saved.
func (s *Service) Mutate(fn func(*model.Snapshot) error) (model.Snapshot, error) {
	s.mu.Lock()
	next := s.snap.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return model.Snapshot{}, err
	}
	saved, err := s.store.Save(next)
	if err != nil {
		s.mu.Unlock()
		return model.Snapshot{}, err
	}
	s.snap = saved
	s.mu.Unlock()

	s.scheduler.OnLocalMutation()
	return saved.Clone(), nil
}

// ItemInput describes a new item. A nil LowThreshold uses the default from
// settings.
type ItemInput struct {
	Name             string
	Quantity         int
	LowThreshold     *int
	TargetQuantity   int
	SourceCategories []string
	Room             string
}

// AddItem appends a new item and returns it as stored.
func (s *Service) AddItem(in ItemInput) (model.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Item{}, errors.New("item name is required")
	}
	id := s.idgen.New()
	now := canonicalTime(s.clock.Now())

	saved, err := s.Mutate(func(snap *model.Snapshot) error {
		low := snap.Settings.DefaultLowThreshold
		if in.LowThreshold != nil {
			low = *in.LowThreshold
		}
		snap.Items = append(snap.Items, model.Item{
			ID:                id,
			Name:              name,
			Quantity:          in.Quantity,
			LowThreshold:      low,
			TargetQuantity:    in.TargetQuantity,
			SourceCategories:  in.SourceCategories,
			Room:              in.Room,
			CheckIntervalDays: snap.Settings.DefaultCheckIntervalDays,
			LastCheckedAt:     now,
			UpdatedAt:         now,
		})
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}
	item, _ := saved.ItemByID(id)
	return item, nil
}

// SetQuantity sets an item's on-hand quantity, clamped at zero. It also
// counts as a stock check.
func (s *Service) SetQuantity(id string, quantity int) (model.Item, error) {
	now := canonicalTime(s.clock.Now())
	saved, err := s.Mutate(func(snap *model.Snapshot) error {
		item, err := findItem(snap, id)
		if err != nil {
			return err
		}
		item.Quantity = max(quantity, 0)
		item.LastCheckedAt = now
		item.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Item{}, err
	}
	item, _ := saved.ItemByID(id)
	return item, nil
}

// RemoveItem deletes an item and its shopping plan entry.
func (s *Service) RemoveItem(id string) error {
	_, err := s.Mutate(func(snap *model.Snapshot) error {
		idx := slices.IndexFunc(snap.Items, func(it model.Item) bool { return it.ID == id })
		if idx < 0 {
			return fmt.Errorf("removing %q: %w", id, ErrItemNotFound)
		}
		snap.Items = slices.Delete(snap.Items, idx, idx+1)
		delete(snap.Shopping.BuyQuantityByItemID, id)
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.view.PendingDeleteID == id {
		s.view.PendingDeleteID = ""
	}
	if s.view.EditingItemID == id {
		s.view.EditingItemID = ""
	}
	s.mu.Unlock()
	return nil
}

// SetBuyQuantity plans to buy quantity of an item. Zero or less removes it
// from the plan.
func (s *Service) SetBuyQuantity(id string, quantity int) error {
	_, err := s.Mutate(func(snap *model.Snapshot) error {
		if _, err := findItem(snap, id); err != nil {
			return err
		}
		if quantity <= 0 {
			delete(snap.Shopping.BuyQuantityByItemID, id)
			return nil
		}
		snap.Shopping.BuyQuantityByItemID[id] = quantity
		return nil
	})
	return err
}

// PresetKind selects which preset list an operation applies to.
type PresetKind string

const (
	PresetSource PresetKind = "source"
	PresetRoom   PresetKind = "room"
)

// AddPreset appends a label to a preset list. Duplicates are dropped by
// normalization.
func (s *Service) AddPreset(kind PresetKind, label string) error {
	label = strings.TrimSpace(label)
	if label == "" || isUnassigned(label) {
		return fmt.Errorf("invalid %s preset %q", kind, label)
	}
	_, err := s.Mutate(func(snap *model.Snapshot) error {
		list, err := presetList(snap, kind)
		if err != nil {
			return err
		}
		*list = append(*list, label)
		return nil
	})
	return err
}

// RemovePreset removes a label from a preset list and moves every item using
// it to Unassigned.
func (s *Service) RemovePreset(kind PresetKind, label string) error {
	now := canonicalTime(s.clock.Now())
	_, err := s.Mutate(func(snap *model.Snapshot) error {
		list, err := presetList(snap, kind)
		if err != nil {
			return err
		}
		*list = slices.DeleteFunc(*list, func(p string) bool { return strings.EqualFold(p, label) })

		for i := range snap.Items {
			item := &snap.Items[i]
			switch kind {
			case PresetRoom:
				if strings.EqualFold(item.Room, label) {
					item.Room = model.Unassigned
					item.UpdatedAt = now
				}
			case PresetSource:
				kept := slices.DeleteFunc(slices.Clone(item.SourceCategories), func(c string) bool {
					return strings.EqualFold(c, label)
				})
				if len(kept) != len(item.SourceCategories) {
					item.SourceCategories = kept
					item.UpdatedAt = now
				}
			}
		}
		return nil
	})
	return err
}

// SetTheme stores the theme mode. Unknown modes fall back to light.
func (s *Service) SetTheme(mode string) error {
	_, err := s.Mutate(func(snap *model.Snapshot) error {
		snap.Settings.ThemeMode = mode
		return nil
	})
	return err
}

// SetDefaultLowThreshold changes the threshold applied to new items.
func (s *Service) SetDefaultLowThreshold(n int) error {
	_, err := s.Mutate(func(snap *model.Snapshot) error {
		snap.Settings.DefaultLowThreshold = max(n, 0)
		return nil
	})
	return err
}

// Link picks and activates a sync file.
func (s *Service) Link(ctx context.Context, picker Picker) (*SyncLink, error) {
	return s.syncer.Link(ctx, picker)
}

// Resume restores a link saved by an earlier session.
func (s *Service) Resume(ctx context.Context) (*SyncLink, error) {
	return s.syncer.Resume(ctx)
}

// Sync runs a sync immediately. A pending debounced sync is cancelled since
// this one covers it.
func (s *Service) Sync(ctx context.Context, trigger Trigger) State {
	s.scheduler.Cancel()
	return s.syncer.Sync(ctx, trigger)
}

// ClearLink removes the link and cancels any pending auto-sync.
func (s *Service) ClearLink() {
	s.scheduler.Cancel()
	s.syncer.ClearLink()
}

// SyncState returns the current sync state.
func (s *Service) SyncState() State {
	return s.syncer.State()
}

// SyncPending reports whether an auto-sync is waiting on the debounce timer.
func (s *Service) SyncPending() bool {
	return s.scheduler.Pending()
}

// Close stops the scheduler. In-flight syncs finish on their own.
func (s *Service) Close() {
	s.scheduler.Stop()
}

func findItem(snap *model.Snapshot, id string) (*model.Item, error) {
	for i := range snap.Items {
		if snap.Items[i].ID == id {
			return &snap.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%q: %w", id, ErrItemNotFound)
}

func presetList(snap *model.Snapshot, kind PresetKind) (*[]string, error) {
	switch kind {
	case PresetSource:
		return &snap.Settings.SourceCategoryPresets, nil
	case PresetRoom:
		return &snap.Settings.RoomPresets, nil
	}
	return nil, fmt.Errorf("unknown preset kind %q", kind)
}
