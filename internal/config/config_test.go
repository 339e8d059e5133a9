package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		DeviceID: "laptop-1",
		BaseDir:  "/home/user/.local/share/reorder",
		LogDir:   "/home/user/.local/share/reorder/log",
		LogLevel: "debug",
		Store:    StoreConfig{Type: "dir", Dir: "/home/user/.local/share/reorder/state"},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/reorder/db"},
		Sync: SyncConfig{
			Debounce:    "2s",
			Encrypt:     true,
			WorkFactor:  15,
			S3Region:    "us-east-1",
			S3Endpoint:  "http://localhost:9000",
			S3AccessKey: "minio",
			S3SecretKey: "minio-secret",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}
	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.DeviceID != original.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, original.DeviceID)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.Store != original.Store {
		t.Errorf("Store = %+v, want %+v", got.Store, original.Store)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Sync != original.Sync {
		t.Errorf("Sync = %+v, want %+v", got.Sync, original.Sync)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("device-1", "/data/reorder")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceID", cfg.DeviceID, "device-1"},
		{"LogDir", cfg.LogDir, "/data/reorder/log"},
		{"Store.Type", cfg.Store.Type, "dir"},
		{"Store.Dir", cfg.Store.Dir, "/data/reorder/state"},
		{"Database.Type", cfg.Database.Type, "sqlite"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/reorder/db"},
		{"Sync.Debounce", cfg.Sync.Debounce, DefaultDebounce},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestSyncConfig_DebounceDuration(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"empty uses default", "", 0, false},
		{"milliseconds", "900ms", 900 * time.Millisecond, false},
		{"seconds", "2s", 2 * time.Second, false},
		{"garbage", "soon", 0, true},
		{"negative", "-1s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SyncConfig{Debounce: tt.in}.DebounceDuration()
			if (err != nil) != tt.wantErr {
				t.Fatalf("DebounceDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DebounceDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "reorder.toml")

		if err := Init(path, NewConfig("d1", dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reorder.toml")
		cfg := NewConfig("d1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}
		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "reorder.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DeviceID != "read-test" {
			t.Errorf("DeviceID = %q, want %q", got.DeviceID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/reorder.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
