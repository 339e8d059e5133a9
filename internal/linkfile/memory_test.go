package linkfile

import (
	"context"
	"errors"
	"testing"

	"reorder-go/internal/reorder"
)

func TestMemoryFile_ReadWrite(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFile("inventory.json")

	if got, err := f.Read(ctx); err != nil || got != "" {
		t.Fatalf("Read() = (%q, %v), want empty", got, err)
	}
	if err := f.Write(ctx, "one"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got, _ := f.Read(ctx); got != "one" {
		t.Errorf("Read() = %q, want %q", got, "one")
	}
	if f.Writes() != 1 || f.Reads() != 2 {
		t.Errorf("Writes() = %d, Reads() = %d, want 1 and 2", f.Writes(), f.Reads())
	}
	if f.Ref() != "mem://inventory.json" {
		t.Errorf("Ref() = %q", f.Ref())
	}
}

func TestMemoryFile_InjectedFailuresFireOnce(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFile("inventory.json")
	boom := errors.New("boom")

	f.FailNextRead(boom)
	if _, err := f.Read(ctx); !errors.Is(err, boom) {
		t.Errorf("first Read() error = %v, want boom", err)
	}
	if _, err := f.Read(ctx); err != nil {
		t.Errorf("second Read() error = %v", err)
	}

	f.FailNextWrite(boom)
	if err := f.Write(ctx, "x"); !errors.Is(err, boom) {
		t.Errorf("first Write() error = %v, want boom", err)
	}
	if f.Contents() != "" {
		t.Errorf("failed Write() stored %q", f.Contents())
	}
	if err := f.Write(ctx, "x"); err != nil {
		t.Errorf("second Write() error = %v", err)
	}
}

func TestMemoryFile_Permission(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		current     reorder.Permission
		onRequest   reorder.Permission
		wantQuery   reorder.Permission
		wantRequest reorder.Permission
	}{
		{"granted", reorder.PermissionGranted, reorder.PermissionGranted, reorder.PermissionGranted, reorder.PermissionGranted},
		{"prompt then grant", reorder.PermissionPrompt, reorder.PermissionGranted, reorder.PermissionPrompt, reorder.PermissionGranted},
		{"prompt then deny", reorder.PermissionPrompt, reorder.PermissionDenied, reorder.PermissionPrompt, reorder.PermissionDenied},
		{"denied stays denied", reorder.PermissionDenied, reorder.PermissionGranted, reorder.PermissionDenied, reorder.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewMemoryFile("x")
			f.SetPermission(tt.current, tt.onRequest)

			if got, _ := f.QueryPermission(ctx); got != tt.wantQuery {
				t.Errorf("QueryPermission() = %q, want %q", got, tt.wantQuery)
			}
			if got, _ := f.RequestPermission(ctx); got != tt.wantRequest {
				t.Errorf("RequestPermission() = %q, want %q", got, tt.wantRequest)
			}
		})
	}
}
