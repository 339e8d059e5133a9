package linkfile

import (
	"context"
	"sync"

	"reorder-go/internal/reorder"
)

// MemoryFile is an in-memory linked file. Besides serving mem:// links it
// lets tests script permission answers and inject I/O failures.
// Safe for concurrent use.
type MemoryFile struct {
	name string

	mu              sync.Mutex
	data            string
	permission      reorder.Permission
	grantOnRequest  reorder.Permission
	readErr         error
	writeErr        error
	reads, writes   int
	permissionCalls int
}

var _ reorder.LinkedFile = (*MemoryFile)(nil)

// NewMemoryFile creates an empty, fully permitted file.
func NewMemoryFile(name string) *MemoryFile {
	return &MemoryFile{
		name:           name,
		permission:     reorder.PermissionGranted,
		grantOnRequest: reorder.PermissionGranted,
	}
}

func (f *MemoryFile) Ref() string  { return "mem://" + f.name }
func (f *MemoryFile) Name() string { return f.name }

func (f *MemoryFile) Read(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.readErr; err != nil {
		f.readErr = nil
		return "", err
	}
	return f.data, nil
}

func (f *MemoryFile) Write(ctx context.Context, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr; err != nil {
		f.writeErr = nil
		return err
	}
	f.writes++
	f.data = data
	return nil
}

func (f *MemoryFile) QueryPermission(ctx context.Context) (reorder.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissionCalls++
	return f.permission, nil
}

// RequestPermission turns a prompt into the configured answer. Granted and
// denied are returned unchanged.
func (f *MemoryFile) RequestPermission(ctx context.Context) (reorder.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissionCalls++
	if f.permission == reorder.PermissionPrompt {
		f.permission = f.grantOnRequest
	}
	return f.permission, nil
}

// Contents returns the stored data.
func (f *MemoryFile) Contents() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

// SetContents replaces the stored data without counting as a write.
func (f *MemoryFile) SetContents(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
}

// SetPermission sets the answer to QueryPermission, and what a prompt
// resolves to on RequestPermission.
func (f *MemoryFile) SetPermission(current, onRequest reorder.Permission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = current
	f.grantOnRequest = onRequest
}

// FailNextRead makes the next Read return err.
func (f *MemoryFile) FailNextRead(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// FailNextWrite makes the next Write return err.
func (f *MemoryFile) FailNextWrite(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// Reads returns how many reads were attempted.
func (f *MemoryFile) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Writes returns how many writes succeeded.
func (f *MemoryFile) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
