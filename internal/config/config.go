package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration for one reorder device.
type Config struct {
	DeviceID string         `toml:"device_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	LogLevel string         `toml:"log_level"` // debug, info, warn or error
	Store    StoreConfig    `toml:"store"`
	Database DatabaseConfig `toml:"database"`
	Sync     SyncConfig     `toml:"sync"`
}

// StoreConfig selects the device-local snapshot store.
// Tagged union: Type decides which other fields matter.
type StoreConfig struct {
	Type string `toml:"type"`          // "dir" or "memory"
	Dir  string `toml:"dir,omitempty"` // only used for type=dir
}

// DatabaseConfig selects where the sync link and history live.
// Tagged union: Type decides which other fields matter.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SyncConfig holds linked-file settings.
type SyncConfig struct {
	Debounce   string `toml:"debounce"`              // Go duration, e.g. "900ms"
	Encrypt    bool   `toml:"encrypt"`               // encrypt newly linked files
	Cipher     string `toml:"cipher,omitempty"`      // "age" (default) or "test"
	WorkFactor int    `toml:"work_factor,omitempty"` // age scrypt log2 work factor

	// Only used for s3:// links.
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// DefaultDebounce is written into new configs.
const DefaultDebounce = "900ms"

// DebounceDuration parses Debounce. An empty value yields zero, which callers
// treat as "use the built-in default".
func (c SyncConfig) DebounceDuration() (time.Duration, error) {
	if c.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid sync.debounce %q: %w", c.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid sync.debounce %q: must not be negative", c.Debounce)
	}
	return d, nil
}

// NewConfig returns a config rooted at baseDir with on-disk defaults.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Store:    StoreConfig{Type: "dir", Dir: filepath.Join(baseDir, "state")},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Sync:     SyncConfig{Debounce: DefaultDebounce},
	}
}

// Manager reads and writes TOML configuration.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := (&Manager{}).Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// The file may hold S3 credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	defer f.Close()

	if err := (&Manager{}).Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config at %s: %w", path, err)
	}
	return nil
}
