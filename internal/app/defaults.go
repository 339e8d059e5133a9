package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - REORDER_CONFIG_PATH: config file location (default: ~/.config/reorder.toml)
//   - REORDER_HOME: base directory for local state (default: ~/.local/share/reorder)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("REORDER_CONFIG_PATH", ".config", "reorder.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome("REORDER_HOME", ".local", "share", "reorder")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns $env when set, else the path elems joined under the
// user's home directory.
func envOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
