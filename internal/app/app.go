package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"reorder-go/internal/config"
	"reorder-go/internal/database"
	"reorder-go/internal/fs"
	"reorder-go/internal/kv"
	"reorder-go/internal/linkfile"
	"reorder-go/internal/model"
	"reorder-go/internal/reorder"
)

// ReorderApp is the application layer between the CLI and reorder.Service.
// It constructs all dependencies from config, restores the persisted sync
// link, and flushes any pending auto-sync on Close.
type ReorderApp struct {
	cfg     *config.Config
	store   kv.Store
	db      *database.SQLiteDatabase
	opener  *linkfile.Opener
	service *reorder.Service
	guard   *reorder.Guard
	logger  reorder.Logger
	op      *Operation
	logFile io.Closer
}

// Option configures NewReorderApp.
type Option func(*options)

type options struct {
	passphrase  func() (string, error)
	logEcho     io.Writer
	clock       reorder.Clock
	idgen       reorder.IDGenerator
	openerOpts  []linkfile.OpenerOption
	serviceOpts []reorder.ServiceOption
}

// WithPassphrase sets how the encryption passphrase is obtained. It is only
// called when an encrypted sync file is read or written.
func WithPassphrase(f func() (string, error)) Option {
	return func(o *options) { o.passphrase = f }
}

// WithLogEcho copies log lines to w in addition to the log file.
func WithLogEcho(w io.Writer) Option {
	return func(o *options) { o.logEcho = w }
}

// WithClock replaces the real clock and id generator.
func WithClock(clock reorder.Clock, idgen reorder.IDGenerator) Option {
	return func(o *options) {
		o.clock = clock
		o.idgen = idgen
	}
}

// WithOpenerOptions passes options through to the linked-file opener.
func WithOpenerOptions(opts ...linkfile.OpenerOption) Option {
	return func(o *options) { o.openerOpts = append(o.openerOpts, opts...) }
}

// WithServiceOptions passes options through to the service.
func WithServiceOptions(opts ...reorder.ServiceOption) Option {
	return func(o *options) { o.serviceOpts = append(o.serviceOpts, opts...) }
}

// NewReorderApp creates a fully wired ReorderApp from cfg.
// command identifies the CLI command being run (e.g. "sync", "item add").
// The caller must call Close when done.
func NewReorderApp(ctx context.Context, cfg *config.Config, command string, opts ...Option) (*ReorderApp, error) {
	o := options{clock: reorder.RealClock{}, idgen: reorder.UUIDGenerator{}}
	for _, opt := range opts {
		opt(&o)
	}

	debounce, err := cfg.Sync.DebounceDuration()
	if err != nil {
		return nil, err
	}

	op := NewOperation(command, o.clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, cfg.LogLevel, op.ID, o.logEcho)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &ReorderApp{cfg: cfg, logger: logger, op: op, logFile: logFile}
	fail := func(err error) (*ReorderApp, error) {
		a.closeResources()
		return nil, err
	}

	a.store, err = kv.NewStoreFromConfig(cfg.Store, logger)
	if err != nil {
		return fail(fmt.Errorf("creating store: %w", err))
	}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database, o.clock)
	if err != nil {
		return fail(fmt.Errorf("creating database: %w", err))
	}
	if err := a.db.CheckMigrations(); err != nil {
		return fail(fmt.Errorf("database schema out of date: %w", err))
	}

	a.opener = linkfile.NewOpenerFromConfig(cfg.Sync, o.passphrase, o.openerOpts...)

	normalizer := reorder.NewNormalizer(o.clock, o.idgen)
	local := reorder.NewLocalStore(a.store, normalizer, o.clock, logger)
	serviceOpts := append([]reorder.ServiceOption{
		reorder.WithDebounce(debounce),
		reorder.WithSyncerOptions(
			reorder.WithHandleStore(a.db.Links(), a.opener),
			reorder.WithHistory(a.db),
		),
	}, o.serviceOpts...)
	a.service = reorder.NewService(local, normalizer, o.clock, o.idgen, logger, serviceOpts...)
	a.guard = reorder.NewGuard(a.service, logger)

	// A link that cannot be reopened is not fatal: local edits still work.
	if _, err := a.service.Resume(ctx); err != nil {
		logger.Warn("could not restore sync link", "error", err)
	}

	logger.Debug("operation started", "command", command, "device", cfg.DeviceID)
	return a, nil
}

// Config returns the configuration the app was built from.
func (a *ReorderApp) Config() *config.Config { return a.cfg }

// Service exposes the underlying service for item and settings operations.
func (a *ReorderApp) Service() *reorder.Service { return a.service }

// Opener exposes the linked-file opener.
func (a *ReorderApp) Opener() *linkfile.Opener { return a.opener }

// Operation returns the operation this app runs on behalf of.
func (a *ReorderApp) Operation() *Operation { return a.op }

// Link links ref as the sync file and immediately runs a manual sync so both
// sides agree. encrypt (or sync.encrypt in config) wraps the file in age.
func (a *ReorderApp) Link(ctx context.Context, ref string, encrypt bool) (*reorder.SyncLink, reorder.State, error) {
	picker := linkfile.Picker{Opener: a.opener, Ref: ref, Encrypt: encrypt || a.cfg.Sync.Encrypt}
	link, err := a.service.Link(ctx, picker)
	if err != nil {
		return nil, a.service.SyncState(), err
	}
	if link == nil {
		return nil, a.service.SyncState(), errors.New("no sync file given")
	}
	return link, a.service.Sync(ctx, reorder.TriggerManual), nil
}

// Unlink forgets the sync file. The file itself is left alone.
func (a *ReorderApp) Unlink() {
	a.service.ClearLink()
}

// Sync runs a manual sync. Run it again after a conflict to merge.
func (a *ReorderApp) Sync(ctx context.Context) reorder.State {
	return a.service.Sync(ctx, reorder.TriggerManual)
}

// Status returns the current sync state.
func (a *ReorderApp) Status() reorder.State {
	return a.service.SyncState()
}

// History returns the most recent sync attempts, newest first.
func (a *ReorderApp) History(limit int) ([]reorder.SyncRecord, error) {
	return a.db.ListSyncs(limit)
}

// FindItem looks an item up by id, then by case-insensitive name.
func (a *ReorderApp) FindItem(query string) (model.Item, error) {
	snap := a.service.Current()
	if item, ok := snap.ItemByID(query); ok {
		return item, nil
	}
	var matches []model.Item
	for _, item := range snap.Items {
		if strings.EqualFold(item.Name, strings.TrimSpace(query)) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return model.Item{}, fmt.Errorf("%w: %q", reorder.ErrItemNotFound, query)
	case 1:
		return matches[0], nil
	default:
		return model.Item{}, fmt.Errorf("%d items named %q; use the item id", len(matches), query)
	}
}

// ExportBackup writes a backup of the current snapshot to path, or to w when
// path is "-".
func (a *ReorderApp) ExportBackup(path string, w io.Writer) error {
	if path == "-" {
		return a.service.ExportBackup(w)
	}
	var buf bytes.Buffer
	if err := a.service.ExportBackup(&buf); err != nil {
		return err
	}
	if err := fs.WriteFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing backup to %s: %w", path, err)
	}
	return nil
}

// ImportBackup replaces the current snapshot with the backup at path.
func (a *ReorderApp) ImportBackup(path string) (model.Snapshot, error) {
	resolved, err := fs.ResolveFile(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("resolving path: %w", err)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()
	return a.service.ImportBackup(f)
}

// Watch adopts snapshots written by other processes sharing the store until
// ctx ends. Adoptions schedule auto-syncs like local edits do.
func (a *ReorderApp) Watch(ctx context.Context) error {
	changes, err := a.store.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching store: %w", err)
	}
	a.logger.Info("watching for changes", "store", a.cfg.Store.Type)
	a.guard.Run(ctx, changes)
	return nil
}

// Fail marks the operation as failed; Close logs the outcome.
func (a *ReorderApp) Fail() {
	a.op.Fail()
}

// Close runs any pending auto-sync, then closes all resources.
func (a *ReorderApp) Close() error {
	if a.service.SyncPending() {
		st := a.service.Sync(context.Background(), reorder.TriggerAuto)
		a.logger.Debug("flushed pending auto-sync", "status", st.Status)
	}
	a.service.Close()
	a.logger.Info("operation finished", "command", a.op.Command, "status", a.op.Status)
	return a.closeResources()
}

func (a *ReorderApp) closeResources() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log: %w", err)
		}
	}
	return firstErr
}
