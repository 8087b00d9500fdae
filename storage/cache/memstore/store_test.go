package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencegpt/core/cache"
)

func newEntry(key string, size int, accessed time.Time) *cache.Entry {
	return &cache.Entry{
		Key:         key,
		Value:       make([]byte, size),
		CreatedAt:   accessed,
		AccessedAt:  accessed,
		AccessCount: 1,
		TTLSeconds:  3600,
		SizeBytes:   size,
	}
}

func TestStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{})
	require.NoError(t, err)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, cache.ErrMiss)

	now := time.Now()
	n, err := s.Set(ctx, newEntry("a", 10, now))
	require.NoError(t, err)
	assert.Zero(t, n)

	e, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10, e.SizeBytes)

	// replacing keeps the size accurate
	_, err = s.Set(ctx, newEntry("a", 25, now))
	require.NoError(t, err)
	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, cache.Summary{Entries: 1, SizeBytes: 25}, sum)

	require.NoError(t, s.Delete(ctx, "a"))
	sum, _ = s.Summary(ctx)
	assert.Equal(t, cache.Summary{}, sum)
}

func TestStore_EntryLimit(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{MaxEntries: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 20; i++ {
		n, err := s.Set(ctx, newEntry(fmt.Sprintf("k%02d", i), 1, start.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		require.Zero(t, n)
	}

	// k00 becomes the most recently accessed, so k01 and k02 are the oldest
	e, err := s.Get(ctx, "k00")
	require.NoError(t, err)
	e.AccessedAt = start.Add(time.Minute)
	e.AccessCount++
	require.NoError(t, s.Touch(ctx, e))

	n, err := s.Set(ctx, newEntry("new", 1, start.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 2, n) // 10% of 20

	for _, key := range []string{"k01", "k02"} {
		_, err = s.Get(ctx, key)
		assert.ErrorIs(t, err, cache.ErrMiss, key)
	}
	for _, key := range []string{"k00", "k03", "new"} {
		_, err = s.Get(ctx, key)
		assert.NoError(t, err, key)
	}

	sum, _ := s.Summary(ctx)
	assert.Equal(t, 19, sum.Entries)
}

func TestStore_SizeLimit(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{MaxSizeBytes: 1000})
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 9; i++ {
		_, err = s.Set(ctx, newEntry(fmt.Sprintf("k%d", i), 100, now))
		require.NoError(t, err)
	}
	n, err := s.Set(ctx, newEntry("big", 200, now))
	require.NoError(t, err)
	// 1100 bytes, evict the oldest until <= 800
	assert.Equal(t, 3, n)

	sum, _ := s.Summary(ctx)
	assert.Equal(t, int64(800), sum.SizeBytes)
	assert.Equal(t, 7, sum.Entries)
	_, err = s.Get(ctx, "k0")
	assert.ErrorIs(t, err, cache.ErrMiss)
	_, err = s.Get(ctx, "big")
	assert.NoError(t, err)
}

func TestStore_SizeLimit_entryTooLarge(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{MaxSizeBytes: 1000})
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 5; i++ {
		_, err = s.Set(ctx, newEntry(fmt.Sprintf("k%d", i), 100, now))
		require.NoError(t, err)
	}

	// over 80% of the limit: rejected, nothing evicted
	n, err := s.Set(ctx, newEntry("huge", 850, now))
	assert.ErrorIs(t, err, ErrEntryTooLarge)
	assert.Zero(t, n)
	_, err = s.Get(ctx, "huge")
	assert.ErrorIs(t, err, cache.ErrMiss)
	sum, _ := s.Summary(ctx)
	assert.Equal(t, cache.Summary{Entries: 5, SizeBytes: 500}, sum)

	// a rejected replacement keeps the previous value
	_, err = s.Set(ctx, newEntry("k0", 900, now))
	assert.ErrorIs(t, err, ErrEntryTooLarge)
	e, err := s.Get(ctx, "k0")
	require.NoError(t, err)
	assert.Equal(t, 100, e.SizeBytes)

	// exactly at the target: older entries make room, the new one stays
	n, err = s.Set(ctx, newEntry("fits", 800, now))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, err = s.Get(ctx, "fits")
	assert.NoError(t, err)
	sum, _ = s.Summary(ctx)
	assert.Equal(t, cache.Summary{Entries: 1, SizeBytes: 800}, sum)
}

func TestStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{})
	require.NoError(t, err)

	now := time.Now()
	old := newEntry("old", 5, now.Add(-2*time.Hour))
	fresh := newEntry("fresh", 5, now)
	_, _ = s.Set(ctx, old)
	_, _ = s.Set(ctx, fresh)

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entries, err := s.Entries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Key)
}

func TestStore_EntriesAndClear(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{})
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 5; i++ {
		_, _ = s.Set(ctx, newEntry(fmt.Sprintf("k%d", i), 3, now))
	}
	entries, err := s.Entries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "k0", entries[0].Key)

	require.NoError(t, s.Clear(ctx))
	sum, _ := s.Summary(ctx)
	assert.Equal(t, cache.Summary{}, sum)

	assert.ErrorIs(t, s.Touch(ctx, newEntry("k0", 3, now)), cache.ErrMiss)
}
