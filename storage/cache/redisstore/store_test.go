package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core/cache"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func newEntry(key string, ttl int) *cache.Entry {
	now := time.Now().UTC().Truncate(time.Second)
	return &cache.Entry{
		Key:         key,
		Value:       []byte(`{"content":"hi"}`),
		CreatedAt:   now,
		AccessedAt:  now,
		AccessCount: 1,
		TTLSeconds:  ttl,
		SizeBytes:   16,
		Meta:        cache.Meta{Type: "general", Provider: "groq"},
	}
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(context.Background(), "redis://127.0.0.1:1")
	assert.Error(t, err)

	_, err = Open(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestStore_SetGetTouch(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)

	e := newEntry("k", 600)
	n, err := s.Set(ctx, e)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists(KeyPrefix+"k"))
	assert.Equal(t, 600*time.Second, mr.TTL(KeyPrefix+"k"))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, e.Value, got.Value)
	assert.Equal(t, e.Meta, got.Meta)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))

	got.AccessCount = 5
	require.NoError(t, s.Touch(ctx, got))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, got.AccessCount)
	assert.Equal(t, 600*time.Second, mr.TTL(KeyPrefix+"k"))

	mr.FastForward(601 * time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
	assert.ErrorIs(t, s.Touch(ctx, e), cache.ErrMiss)
}

func TestStore_ScanOperations(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("unrelated", "x"))

	for i := 0; i < 5; i++ {
		_, err := s.Set(ctx, newEntry(fmt.Sprintf("k%d", i), 600))
		require.NoError(t, err)
	}

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.Summary{Entries: 5, SizeBytes: 80}, sum)

	entries, err := s.Entries(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	n, err := s.DeleteExpired(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, _ = s.Set(ctx, newEntry("k", 600))
	require.NoError(t, s.Delete(ctx, "k"))
	assert.False(t, mr.Exists(KeyPrefix+"k"))

	_, _ = s.Set(ctx, newEntry("k", 600))
	require.NoError(t, s.Clear(ctx))
	sum, _ = s.Summary(ctx)
	assert.Zero(t, sum.Entries)
	assert.True(t, mr.Exists("unrelated"))
}
