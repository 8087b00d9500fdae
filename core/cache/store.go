package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a Store when a key is not present.
var ErrMiss = errors.New("cache miss")

// Meta describes the cached response.
type Meta struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Entry is a stored response with its bookkeeping data.
type Entry struct {
	Key         string    `json:"key"`
	Value       []byte    `json:"value"` // gzip-compressed when Compressed
	CreatedAt   time.Time `json:"created_at"`
	AccessedAt  time.Time `json:"accessed_at"`
	AccessCount int       `json:"access_count"`
	TTLSeconds  int       `json:"ttl_seconds"`
	Compressed  bool      `json:"compressed"`
	SizeBytes   int       `json:"size_bytes"`
	Meta        Meta      `json:"meta"`
}

func (e *Entry) TTL() time.Duration { return time.Duration(e.TTLSeconds) * time.Second }

// Expired reports whether the entry outlived its TTL. Age counts from creation, not last access.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL()
}

// Summary is a store's occupancy.
type Summary struct {
	Entries   int
	SizeBytes int64
}

// Store is a cache backend.
type Store interface {
	// Name identifies the backend (memory, redis).
	Name() string
	// Get returns ErrMiss when key is not present. Expired entries may be returned.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set stores e, evicting entries if a limit is reached. It returns the number of evicted entries.
	Set(ctx context.Context, e *Entry) (int, error)
	// Touch persists the access bookkeeping of an existing entry.
	Touch(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// Entries lists up to limit entries (all when limit <= 0).
	Entries(ctx context.Context, limit int) ([]*Entry, error)
	// DeleteExpired removes the entries expired at now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Summary(ctx context.Context) (Summary, error)
	Ping(ctx context.Context) error
	Close() error
}
