// Package storage is the key-value persistence collaborator: opaque JSON
// blobs stored per logical key with atomic get/set semantics.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Well-known logical keys.
const (
	KeySources   = "sources"
	KeyRules     = "mapping_rules"
	KeySelection = "selection"
)

// Store is a durable key-value store for JSON blobs. Each Put is one logical
// write; last write wins.
type Store interface {
	// Get returns the stored blob for key. Found is false when the key has
	// never been written.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores the blob under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing resources.
	Close() error
}

// Open creates a store for the configured backend: "memory", "sqlite"
// (location is a file path) or "postgres" (location is a DSN).
func Open(ctx context.Context, backend, location string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "sqlite":
		if location == "" {
			location = "formbridge.db"
		}
		return OpenSQLite(ctx, location)
	case "postgres":
		return OpenPostgres(ctx, location)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
