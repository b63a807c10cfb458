package db

import (
	"context"
	"time"
)

// Store is the database facade used by the composition root.
type Store interface {
	Pinger
	KVStore
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// HashStore provides hash operations. The TTL arguments apply to the hash key
// and to every touch key; touch keys must share the hash key's cluster slot.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HReplace atomically replaces all fields of key.
	HReplace(ctx context.Context, key string, fields map[string]string, ttl time.Duration, touch ...string) error
	// HToggle atomically sets field to value when absent and removes it when
	// present. It reports whether the field is now set, and returns
	// ErrKeyNotFound without writing when a touch key is missing.
	HToggle(ctx context.Context, key, field, value string, ttl time.Duration, touch ...string) (bool, error)
}
