package linkfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reorder-go/internal/reorder"
)

func TestLocalFile_ReadWrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "inventory.json")

	f, err := NewLocalFile(path)
	if err != nil {
		t.Fatalf("NewLocalFile() error = %v", err)
	}

	got, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("Read() of missing file error = %v", err)
	}
	if got != "" {
		t.Errorf("Read() of missing file = %q, want empty", got)
	}

	if err := f.Write(ctx, `{"items":[]}`); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got, _ := f.Read(ctx); got != `{"items":[]}` {
		t.Errorf("Read() = %q, want written data", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the linked file", len(entries))
	}
}

func TestLocalFile_RefAndName(t *testing.T) {
	dir := t.TempDir()
	f, err := NewLocalFile(filepath.Join(dir, "inventory.json"))
	if err != nil {
		t.Fatalf("NewLocalFile() error = %v", err)
	}
	if f.Name() != "inventory.json" {
		t.Errorf("Name() = %q, want %q", f.Name(), "inventory.json")
	}
	if !strings.HasPrefix(f.Ref(), "file://") || !strings.HasSuffix(f.Ref(), "/inventory.json") {
		t.Errorf("Ref() = %q", f.Ref())
	}
}

func TestNewLocalFile_Rejects(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"directory", dir},
		{"missing parent", filepath.Join(dir, "nope", "inventory.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLocalFile(tt.path); err == nil {
				t.Error("NewLocalFile() expected error")
			}
		})
	}
}

func TestLocalFile_QueryPermission(t *testing.T) {
	f, err := NewLocalFile(filepath.Join(t.TempDir(), "inventory.json"))
	if err != nil {
		t.Fatalf("NewLocalFile() error = %v", err)
	}
	perm, err := f.QueryPermission(context.Background())
	if err != nil {
		t.Fatalf("QueryPermission() error = %v", err)
	}
	if perm != reorder.PermissionGranted {
		t.Errorf("QueryPermission() = %q, want granted", perm)
	}
}

func TestClassify(t *testing.T) {
	err := classify("writing x", os.ErrPermission)
	if !errors.Is(err, reorder.ErrPermissionDenied) {
		t.Errorf("classify(ErrPermission) = %v, want ErrPermissionDenied", err)
	}
	if err := classify("writing x", os.ErrClosed); errors.Is(err, reorder.ErrPermissionDenied) {
		t.Errorf("classify(ErrClosed) = %v, should not be a permission error", err)
	}
}
