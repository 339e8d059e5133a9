package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reorder-go/internal/database/migrations"
	"reorder-go/internal/reorder"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase stores the persisted sync link and the sync history.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock reorder.Clock
}

// NewSQLiteDatabase opens path (a file or ":memory:") and applies pending
// migrations. A nil clock uses the real clock.
func NewSQLiteDatabase(path string, clock reorder.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return newSQLiteDatabase(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock reorder.Clock) *SQLiteDatabase {
	return newSQLiteDatabase(db, "", clock)
}

func newSQLiteDatabase(db *sql.DB, path string, clock reorder.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = reorder.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: would get its own database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Link reference

// GetLink returns the persisted link reference, or "" when none is stored.
func (s *SQLiteDatabase) GetLink() (string, error) {
	var ref string
	err := s.db.QueryRow("SELECT ref FROM sync_links WHERE id = 1").Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading sync link: %w", err)
	}
	return ref, nil
}

// PutLink stores ref as the single persisted link, replacing any other.
func (s *SQLiteDatabase) PutLink(ref string) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_links (id, ref, linked_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET ref = excluded.ref, linked_at = excluded.linked_at`,
		ref, formatTime(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("storing sync link: %w", err)
	}
	return nil
}

// DeleteLink removes the persisted link. Deleting when none exists is fine.
func (s *SQLiteDatabase) DeleteLink() error {
	if _, err := s.db.Exec("DELETE FROM sync_links"); err != nil {
		return fmt.Errorf("deleting sync link: %w", err)
	}
	return nil
}

// Links adapts the link methods to reorder.HandleStore.
func (s *SQLiteDatabase) Links() reorder.HandleStore {
	return linkStore{s}
}

type linkStore struct{ db *SQLiteDatabase }

func (l linkStore) Get() (string, error) { return l.db.GetLink() }
func (l linkStore) Put(ref string) error { return l.db.PutLink(ref) }
func (l linkStore) Delete() error        { return l.db.DeleteLink() }

// Sync history

// RecordSync appends one finished sync attempt.
func (s *SQLiteDatabase) RecordSync(rec reorder.SyncRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_events (trigger_kind, status, detail, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(rec.Trigger), string(rec.Status), rec.Detail,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("recording sync: %w", err)
	}
	return nil
}

// ListSyncs returns up to limit records, newest first. A limit of zero or
// less returns every record.
func (s *SQLiteDatabase) ListSyncs(limit int) ([]reorder.SyncRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, trigger_kind, status, detail, started_at, finished_at
		 FROM sync_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing syncs: %w", err)
	}
	defer rows.Close()

	var records []reorder.SyncRecord
	for rows.Next() {
		var (
			rec               reorder.SyncRecord
			trigger, status   string
			started, finished string
		)
		if err := rows.Scan(&rec.ID, &trigger, &status, &rec.Detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning sync record: %w", err)
		}
		rec.Trigger = reorder.Trigger(trigger)
		rec.Status = reorder.Status(status)
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing syncs: %w", err)
	}
	return records, nil
}

// Path returns the database file path ("" for wrapped connections).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Status(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

var (
	_ reorder.History     = (*SQLiteDatabase)(nil)
	_ reorder.HandleStore = linkStore{}
)
