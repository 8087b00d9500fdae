// Package memstore is an in-process cache.Store backed by an LRU list ordered by last access.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core/cache"
)

const (
	DefaultMaxEntries = 10000
	DefaultMaxSizeMB  = 500

	evictFraction   = 0.1 // of MaxEntries, when the entry limit is reached
	sizeTargetRatio = 0.8 // of MaxSizeBytes, after the size limit is reached
)

// ErrEntryTooLarge is returned by Set for an entry that cannot fit under the size limit.
var ErrEntryTooLarge = errors.New("cache entry too large")

type Options struct {
	MaxEntries   int
	MaxSizeBytes int64
}

type Store struct {
	mu   sync.Mutex
	lru  *simplelru.LRU[string, *cache.Entry]
	opts Options
	size int64
}

var _ cache.Store = (*Store)(nil)

func New(opts Options) (*Store, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxSizeBytes <= 0 {
		opts.MaxSizeBytes = DefaultMaxSizeMB * 1024 * 1024
	}
	s := &Store{opts: opts}
	// one extra slot so that the LRU never evicts on its own: limits are applied in Set.
	lru, err := simplelru.NewLRU[string, *cache.Entry](opts.MaxEntries+1, s.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "creating lru")
	}
	s.lru = lru
	return s, nil
}

func (s *Store) onEvict(_ string, e *cache.Entry) {
	s.size -= int64(e.SizeBytes)
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Get(_ context.Context, key string) (*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Peek(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	cp := *e
	return &cp, nil
}

func (s *Store) Set(_ context.Context, e *cache.Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(e.SizeBytes)
	target := int64(float64(s.opts.MaxSizeBytes) * sizeTargetRatio)
	if size > target {
		return 0, errors.Wrapf(ErrEntryTooLarge, "%d bytes, limit %d", size, target)
	}

	// a replaced entry is not an eviction
	s.lru.Remove(e.Key)

	var evicted int
	if s.lru.Len() >= s.opts.MaxEntries {
		n := int(float64(s.opts.MaxEntries) * evictFraction)
		if n < 1 {
			n = 1
		}
		evicted += s.removeOldest(n)
	}
	if s.size+size >= s.opts.MaxSizeBytes {
		for s.size+size > target && s.lru.Len() > 0 {
			evicted += s.removeOldest(1)
		}
	}

	cp := *e
	s.lru.Add(e.Key, &cp)
	s.size += size
	return evicted, nil
}

func (s *Store) removeOldest(n int) int {
	var removed int
	for ; removed < n; removed++ {
		if _, _, ok := s.lru.RemoveOldest(); !ok {
			break
		}
	}
	return removed
}

// Touch marks e as the most recently accessed entry.
func (s *Store) Touch(_ context.Context, e *cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lru.Get(e.Key) // moves it to the front
	if !ok {
		return cache.ErrMiss
	}
	cur.AccessedAt = e.AccessedAt
	cur.AccessCount = e.AccessCount
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(key)
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
	s.size = 0
	return nil
}

// Entries lists entries from the least to the most recently accessed.
func (s *Store) Entries(_ context.Context, limit int) ([]*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := s.lru.Values()
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	entries := make([]*cache.Entry, 0, len(values))
	for _, e := range values {
		cp := *e
		entries = append(entries, &cp)
	}
	return entries, nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, key := range s.lru.Keys() {
		if e, ok := s.lru.Peek(key); ok && e.Expired(now) {
			s.lru.Remove(key)
			n++
		}
	}
	return n, nil
}

func (s *Store) Summary(_ context.Context) (cache.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cache.Summary{Entries: s.lru.Len(), SizeBytes: s.size}, nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }
