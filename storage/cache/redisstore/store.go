// Package redisstore is a cache.Store shared between instances through Redis.
// Expiration is delegated to Redis and size limits to its maxmemory policy.
package redisstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/sciencegpt/core/cache"
)

const (
	KeyPrefix = "sciencegpt:cache:"
	scanCount = 100
)

type Store struct {
	rdb *redis.Client
}

var _ cache.Store = (*Store)(nil)

// Open connects to the Redis server at url (redis://[:password@]host:port[/db]).
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	s := New(redis.NewClient(opts))
	if err = s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Name() string { return "redis" }

func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, error) {
	data, err := s.rdb.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, errors.Wrap(err, "redis get")
	}
	e := new(cache.Entry)
	if err = json.Unmarshal(data, e); err != nil {
		return nil, errors.Wrap(err, "decoding entry")
	}
	return e, nil
}

// Set never evicts: it always reports 0.
func (s *Store) Set(ctx context.Context, e *cache.Entry) (int, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return 0, errors.Wrap(err, "encoding entry")
	}
	return 0, errors.Wrap(s.rdb.Set(ctx, KeyPrefix+e.Key, data, e.TTL()).Err(), "redis set")
}

func (s *Store) Touch(ctx context.Context, e *cache.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "encoding entry")
	}
	err = s.rdb.SetArgs(ctx, KeyPrefix+e.Key, data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return cache.ErrMiss
	}
	return errors.Wrap(err, "redis touch")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.rdb.Del(ctx, KeyPrefix+key).Err(), "redis del")
}

func (s *Store) Clear(ctx context.Context) error {
	return s.scan(ctx, func(key string, _ *cache.Entry) (bool, error) {
		return true, s.rdb.Del(ctx, key).Err()
	})
}

func (s *Store) Entries(ctx context.Context, limit int) ([]*cache.Entry, error) {
	var entries []*cache.Entry
	err := s.scan(ctx, func(_ string, e *cache.Entry) (bool, error) {
		if e != nil {
			entries = append(entries, e)
		}
		return limit <= 0 || len(entries) < limit, nil
	})
	return entries, err
}

// DeleteExpired only finds entries whose Redis TTL outlived their own, e.g. after a clock change.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.scan(ctx, func(key string, e *cache.Entry) (bool, error) {
		if e != nil && e.Expired(now) {
			if err := s.rdb.Del(ctx, key).Err(); err != nil {
				return false, err
			}
			n++
		}
		return true, nil
	})
	return n, err
}

func (s *Store) Summary(ctx context.Context) (cache.Summary, error) {
	var sum cache.Summary
	err := s.scan(ctx, func(_ string, e *cache.Entry) (bool, error) {
		if e != nil {
			sum.Entries++
			sum.SizeBytes += int64(e.SizeBytes)
		}
		return true, nil
	})
	return sum, err
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.rdb.Ping(ctx).Err(), "redis ping")
}

func (s *Store) Close() error { return s.rdb.Close() }

// scan calls fn for every cache key until fn returns false.
// Entries that vanished or cannot be decoded are passed as nil.
func (s *Store) scan(ctx context.Context, fn func(key string, e *cache.Entry) (bool, error)) error {
	iter := s.rdb.Scan(ctx, 0, KeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		e, err := s.Get(ctx, strings.TrimPrefix(key, KeyPrefix))
		if err != nil {
			e = nil
		}
		more, err := fn(key, e)
		if err != nil {
			return errors.Wrap(err, "redis scan")
		}
		if !more {
			return nil
		}
	}
	return errors.Wrap(iter.Err(), "redis scan")
}
