// Package kv provides the device-local key/value stores that hold the
// snapshot, each with a feed of writes made by other contexts.
package kv

import (
	"context"
	"fmt"

	"reorder-go/internal/config"
	"reorder-go/internal/reorder"
)

// Store is a KVStore that can also report writes made elsewhere.
type Store interface {
	reorder.KVStore
	// Watch streams changes written by other contexts until ctx ends.
	Watch(ctx context.Context) (<-chan reorder.Change, error)
	Close() error
}

// NewStoreFromConfig creates the Store described by cfg.
func NewStoreFromConfig(cfg config.StoreConfig, logger reorder.Logger) (Store, error) {
	switch cfg.Type {
	case "dir":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("dir required for dir store")
		}
		return NewDirStore(cfg.Dir, logger)
	case "memory":
		return NewMemoryBus().Open(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
