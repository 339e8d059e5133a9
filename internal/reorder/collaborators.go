package reorder

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrPermissionDenied marks a linked-file operation refused because the
	// access grant was revoked or never given. Re-authorizing fixes it.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCancelled is returned by a Picker when the user backs out.
	// Linking treats it as a silent no-op.
	ErrCancelled = errors.New("cancelled")

	// ErrNotLinked is returned when an operation needs a linked file.
	ErrNotLinked = errors.New("no sync file linked")

	// ErrMalformedBackup wraps every backup import rejection.
	ErrMalformedBackup = errors.New("malformed backup")
)

// Logger is the structured logging surface of the sync engine.
// Args are slog-style alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Change is a notification that another context wrote Value under Key.
type Change struct {
	Key   string
	Value string
}

// KVStore is the device-local string-keyed store shared by every context on
// the device. Get reports ok=false for a missing key.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	// Update replaces the value at key with fn's result. No other write to
	// key, from any context sharing the store, lands between the read and
	// the write. An error from fn leaves the value untouched.
	Update(key string, fn func(old string, ok bool) (string, error)) error
}

// Permission is the access state of a linked file.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// LinkedFile is a capability for exactly one external file used as the sync
// medium between devices. Implementations return errors wrapping
// ErrPermissionDenied when access has been revoked.
type LinkedFile interface {
	// Ref is a stable reference that an Opener can turn back into a
	// capability in a later session.
	Ref() string
	// Name is a human-readable label for status output.
	Name() string
	// Read returns the full file contents. A file that does not exist yet
	// reads as empty.
	Read(ctx context.Context) (string, error)
	// Write replaces the full file contents.
	Write(ctx context.Context, data string) error
	QueryPermission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
}

// Encryptor seals linked-file contents at rest. Decrypt fails when the key
// material does not match what Encrypt used.
type Encryptor interface {
	Encrypt(r io.Reader, w io.Writer) error
	Decrypt(r io.Reader, w io.Writer) error
}

// Picker obtains a new LinkedFile from the user.
type Picker interface {
	Pick(ctx context.Context) (LinkedFile, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context) (LinkedFile, error)

func (f PickerFunc) Pick(ctx context.Context) (LinkedFile, error) { return f(ctx) }

// Opener reconstructs a LinkedFile from a persisted Ref.
type Opener interface {
	Open(ref string) (LinkedFile, error)
}

// HandleStore persists the active link reference across sessions.
// Get returns "" when nothing is stored.
type HandleStore interface {
	Get() (string, error)
	Put(ref string) error
	Delete() error
}

// SyncRecord describes one completed sync attempt.
type SyncRecord struct {
	ID         int64
	Trigger    Trigger
	Status     Status
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// History records completed sync attempts.
type History interface {
	RecordSync(rec SyncRecord) error
	ListSyncs(limit int) ([]SyncRecord, error)
}
