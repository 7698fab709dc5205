// Package db provides the optional session record store: a small
// key-value binding used to persist SSE session records across
// restarts. The gateway works without it; an unconfigured store simply
// disables persistence.
package db

import (
	"context"
	"fmt"
)

// Store is the key-value capability the gateway depends on. All
// implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put inserts or replaces the value for key.
	Put(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "sqlite", "redis", or "" to disable persistence.
	Backend   string
	Path      string // sqlite database path
	RedisAddr string // redis host:port
}

// Open creates the configured backend. An empty backend name returns
// (nil, nil): persistence disabled.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "sqlite":
		return newSQLiteStore(cfg.Path)
	case "redis":
		return newRedisStore(cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown session store backend %q", cfg.Backend)
	}
}
