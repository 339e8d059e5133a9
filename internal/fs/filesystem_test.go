package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "inventory.json")
	if err := os.WriteFile(existing, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "existing file", raw: existing, want: existing},
		{name: "new file in existing dir", raw: filepath.Join(dir, "new.json"), want: filepath.Join(dir, "new.json")},
		{name: "directory", raw: dir, wantErr: true},
		{name: "missing parent", raw: filepath.Join(dir, "nope", "x.json"), wantErr: true},
		{name: "parent is a file", raw: filepath.Join(existing, "x.json"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFile(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	if err := WriteFileAtomic(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("second WriteFileAtomic() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "state"), []byte("x"), 0o600)
	if err == nil {
		t.Error("WriteFileAtomic() expected error for missing directory")
	}
}
