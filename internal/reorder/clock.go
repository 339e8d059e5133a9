package reorder

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so sync decisions are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts item ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// canonicalTime drops the monotonic reading and location and truncates to the
// millisecond precision used in the wire format.
func canonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// laterOf returns the later of two timestamps.
func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
