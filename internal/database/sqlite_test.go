package database

import (
	"testing"
	"time"

	"reorder-go/internal/reorder"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()
	clock := fixedClock{now: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	db, err := NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDatabase_Links(t *testing.T) {
	t.Run("empty store returns empty ref", func(t *testing.T) {
		links := newTestDB(t).Links()

		ref, err := links.Get()
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ref != "" {
			t.Errorf("Get() = %q, want empty", ref)
		}
	})

	t.Run("put replaces previous link", func(t *testing.T) {
		links := newTestDB(t).Links()

		if err := links.Put("file:///tmp/a.json"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := links.Put("s3://bucket/inventory.json"); err != nil {
			t.Fatalf("second Put() error = %v", err)
		}

		ref, err := links.Get()
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ref != "s3://bucket/inventory.json" {
			t.Errorf("Get() = %q, want %q", ref, "s3://bucket/inventory.json")
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		links := newTestDB(t).Links()

		if err := links.Put("mem://x"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := links.Delete(); err != nil {
				t.Fatalf("Delete() #%d error = %v", i+1, err)
			}
		}
		if ref, _ := links.Get(); ref != "" {
			t.Errorf("Get() after Delete = %q, want empty", ref)
		}
	})
}

func TestSQLiteDatabase_SyncHistory(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	records := []reorder.SyncRecord{
		{Trigger: reorder.TriggerManual, Status: reorder.StatusSynced, Detail: "Saved to a.json.", StartedAt: base, FinishedAt: base.Add(20 * time.Millisecond)},
		{Trigger: reorder.TriggerAuto, Status: reorder.StatusOffline, Detail: reorder.MsgRetry, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute)},
		{Trigger: reorder.TriggerAuto, Status: reorder.StatusConflict, Detail: reorder.MsgConflict, StartedAt: base.Add(2 * time.Minute), FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := db.RecordSync(rec); err != nil {
			t.Fatalf("RecordSync() error = %v", err)
		}
	}

	t.Run("newest first with limit", func(t *testing.T) {
		got, err := db.ListSyncs(2)
		if err != nil {
			t.Fatalf("ListSyncs() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(ListSyncs(2)) = %d, want 2", len(got))
		}
		if got[0].Status != reorder.StatusConflict {
			t.Errorf("got[0].Status = %q, want %q", got[0].Status, reorder.StatusConflict)
		}
		if got[1].Trigger != reorder.TriggerAuto || got[1].Detail != reorder.MsgRetry {
			t.Errorf("got[1] = %+v", got[1])
		}
		if !got[1].StartedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("got[1].StartedAt = %v, want %v", got[1].StartedAt, base.Add(time.Minute))
		}
	})

	t.Run("zero limit returns all", func(t *testing.T) {
		got, err := db.ListSyncs(0)
		if err != nil {
			t.Fatalf("ListSyncs() error = %v", err)
		}
		if len(got) != len(records) {
			t.Fatalf("len(ListSyncs(0)) = %d, want %d", len(got), len(records))
		}
		if !got[2].FinishedAt.Equal(base.Add(20 * time.Millisecond)) {
			t.Errorf("oldest FinishedAt = %v", got[2].FinishedAt)
		}
	})
}
