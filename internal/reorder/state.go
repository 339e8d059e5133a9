package reorder

import (
	"fmt"
	"time"

	"reorder-go/internal/model"
)

// Status is the coarse sync state shown to the user.
type Status string

const (
	StatusOffline  Status = "offline"
	StatusSyncing  Status = "syncing"
	StatusSynced   Status = "synced"
	StatusConflict Status = "conflict"
)

// Label returns the display label for a status.
func (s Status) Label() string {
	switch s {
	case StatusOffline:
		return "Offline"
	case StatusSyncing:
		return "Syncing"
	case StatusSynced:
		return "Synced"
	case StatusConflict:
		return "Conflict"
	default:
		return string(s)
	}
}

// Trigger records who started a sync.
type Trigger string

const (
	// TriggerManual is a user-initiated sync. It may request permission.
	TriggerManual Trigger = "manual"
	// TriggerAuto is a scheduler-initiated sync. It never prompts.
	TriggerAuto Trigger = "auto"
)

// User-facing detail messages.
const (
	MsgNotLinked  = "No sync file linked."
	MsgConflict   = "Local and sync file changed at the same time. Run sync again to merge them."
	MsgPermission = "Access to the sync file was revoked. Reconnect the file to resume syncing."
	MsgRetry      = "Could not reach the sync file. Try again later."
)

// SyncLink describes the active link without exposing the capability.
type SyncLink struct {
	Ref  string
	Name string
}

// State is the process-local sync state. It is a plain value: the Syncer
// owns the current copy and replaces it through Transition.
type State struct {
	Status        Status
	Detail        string
	LastSyncedAt  time.Time
	Link          LinkedFile
	PendingRemote *model.Snapshot
	AutoSync      bool
}

// InitialState is the state before any link exists.
func InitialState() State {
	return State{Status: StatusOffline, Detail: MsgNotLinked}
}

// SyncLink returns a description of the link, or nil when unlinked.
func (s State) SyncLink() *SyncLink {
	if s.Link == nil {
		return nil
	}
	return &SyncLink{Ref: s.Link.Ref(), Name: s.Link.Name()}
}

// AutoSyncEligible reports whether a local mutation should schedule a sync.
func (s State) AutoSyncEligible() bool {
	return s.Link != nil && s.AutoSync && s.Status != StatusConflict
}

// Event is an input to Transition.
type Event interface {
	isEvent()
}

// EventLinked: the user picked a new file.
type EventLinked struct{ File LinkedFile }

// EventResumed: a link persisted by an earlier session was reopened.
type EventResumed struct {
	File    LinkedFile
	Granted bool
}

// EventSyncStarted: a sync attempt acquired the lock.
type EventSyncStarted struct{}

// EventSynced: local and remote now agree.
type EventSynced struct {
	At     time.Time
	Detail string
}

// EventConflict: both sides changed with equal timestamps.
type EventConflict struct{ Remote model.Snapshot }

// EventPermissionLost: access to the linked file is gone.
type EventPermissionLost struct{}

// EventFailed: a transient I/O or parse failure.
type EventFailed struct{ Err error }

// EventNotLinked: a sync was requested with no link.
type EventNotLinked struct{}

// EventCleared: the user removed the link.
type EventCleared struct{}

func (EventLinked) isEvent()         {}
func (EventResumed) isEvent()        {}
func (EventSyncStarted) isEvent()    {}
func (EventSynced) isEvent()         {}
func (EventConflict) isEvent()       {}
func (EventPermissionLost) isEvent() {}
func (EventFailed) isEvent()         {}
func (EventNotLinked) isEvent()      {}
func (EventCleared) isEvent()        {}

// Transition computes the next state. It has no side effects.
func Transition(s State, ev Event) State {
	switch e := ev.(type) {
	case EventLinked:
		s.Link = e.File
		s.PendingRemote = nil
		s.AutoSync = true
		s.Status = StatusOffline
		s.Detail = fmt.Sprintf("Linked to %s.", e.File.Name())
	case EventResumed:
		s.Link = e.File
		s.PendingRemote = nil
		s.Status = StatusOffline
		s.AutoSync = e.Granted
		if e.Granted {
			s.Detail = fmt.Sprintf("Linked to %s.", e.File.Name())
		} else {
			s.Detail = MsgPermission
		}
	case EventSyncStarted:
		s.Status = StatusSyncing
		s.Detail = "Syncing…"
	case EventSynced:
		s.Status = StatusSynced
		s.Detail = e.Detail
		s.LastSyncedAt = e.At
		s.PendingRemote = nil
		s.AutoSync = true
	case EventConflict:
		remote := e.Remote.Clone()
		s.Status = StatusConflict
		s.Detail = MsgConflict
		s.PendingRemote = &remote
	case EventPermissionLost:
		s.Status = StatusOffline
		s.Detail = MsgPermission
		s.AutoSync = false
	case EventFailed:
		s.Status = StatusOffline
		s.Detail = MsgRetry
	case EventNotLinked:
		s.Status = StatusOffline
		s.Detail = MsgNotLinked
	case EventCleared:
		return InitialState()
	}
	return s
}
