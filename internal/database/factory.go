package database

import (
	"fmt"
	"os"
	"path/filepath"

	"reorder-go/internal/config"
	"reorder-go/internal/reorder"
)

// NewDatabaseFromConfig opens the sync state database described by cfg.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock reorder.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, "reorder.db"), clock)
	case "memory":
		return NewSQLiteDatabase(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
